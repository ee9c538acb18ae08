package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"order-tracking-service/internal/model"
)

var _ OrderStore = (*MemoryOrderRepository)(nil)

// MemoryOrderRepository replica en memoria la semántica del repositorio Mongo,
// incluida la unicidad de número de guía. Se usa con STORAGE=memory y en pruebas.
type MemoryOrderRepository struct {
	mu       sync.RWMutex
	byID     map[string]model.Order
	tracking map[string]string // número de guía -> id de orden
	now      func() time.Time
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		byID:     make(map[string]model.Order),
		tracking: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryOrderRepository) Insert(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[o.ID]; ok {
		return model.ErrAlreadyExists
	}
	if o.TrackingNumber != "" {
		if _, ok := m.tracking[o.TrackingNumber]; ok {
			return model.ErrAlreadyExists
		}
		m.tracking[o.TrackingNumber] = o.ID
	}
	cp := cloneOrder(o)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	if cp.PaymentStatus == "" {
		cp.PaymentStatus = model.PaymentUnpaid
	}
	cp.UpdatedAt = cp.CreatedAt
	m.byID[cp.ID] = cp
	return nil
}

func (m *MemoryOrderRepository) FindByID(_ context.Context, orderID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byID[orderID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := cloneOrder(&o)
	return &cp, nil
}

func (m *MemoryOrderRepository) FindByTrackingNumber(ctx context.Context, code string) (*model.Order, error) {
	m.mu.RLock()
	id, ok := m.tracking[code]
	m.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *MemoryOrderRepository) FindByIDFragment(_ context.Context, fragment, userID string) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(fragment)
	out := make([]*model.Order, 0)
	for _, o := range m.byID {
		if userID != "" && o.UserID != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(o.ID), needle) {
			continue
		}
		cp := cloneOrder(&o)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}

func (m *MemoryOrderRepository) TrackingNumberExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tracking[code]
	return ok, nil
}

func (m *MemoryOrderRepository) TrackingNumbersWithPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for code := range m.tracking {
		if strings.HasPrefix(code, prefix) {
			out = append(out, code)
		}
	}
	return out, nil
}

func (m *MemoryOrderRepository) AssignTrackingNumber(_ context.Context, orderID, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return "", model.ErrNotFound
	}
	if o.TrackingNumber != "" {
		return o.TrackingNumber, nil
	}
	if _, taken := m.tracking[code]; taken {
		return "", model.ErrTrackingTaken
	}
	o.TrackingNumber = code
	o.UpdatedAt = m.now()
	m.byID[orderID] = o
	m.tracking[code] = orderID
	return code, nil
}

func (m *MemoryOrderRepository) ApplyPayment(_ context.Context, orderID string, expected model.Status, upd model.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return model.ErrNotFound
	}
	if o.Status != expected {
		return model.ErrStatusChanged
	}
	o.Status = upd.Status
	o.PaymentStatus = upd.PaymentStatus
	if upd.PaypalTransactionID != "" {
		o.PaypalTransactionID = upd.PaypalTransactionID
	}
	o.UpdatedAt = m.now()
	m.byID[orderID] = o
	return nil
}

func (m *MemoryOrderRepository) FindStale(_ context.Context, f model.StaleFilter) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Order, 0)
	for _, o := range m.byID {
		if slices.Contains(model.TerminalStatuses, o.Status) {
			continue
		}
		if !o.CreatedAt.Before(f.CreatedBefore) {
			continue
		}
		cp := cloneOrder(&o)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryOrderRepository) MarkDelivered(_ context.Context, orderIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated []string
	now := m.now()
	for _, id := range orderIDs {
		o, ok := m.byID[id]
		if !ok || slices.Contains(model.TerminalStatuses, o.Status) {
			continue
		}
		o.Status = model.StatusDelivered
		o.UpdatedAt = now
		m.byID[id] = o
		updated = append(updated, id)
	}
	return updated, nil
}

func cloneOrder(o *model.Order) model.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return cp
}
