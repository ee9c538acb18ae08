package service

import (
	"context"
	"strings"
	"sync"

	"order-tracking-service/internal/model"
)

type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]*model.Order
	tracking map[string]string

	findErr  error
	applyErr error
	// raceOnAssign hace que las primeras N escrituras de guía choquen con otra orden
	raceOnAssign int
	// staleOnApply hace que la primera conciliación encuentre otro estado
	staleOnApply model.Status

	findCalls   int
	existsCalls int
	assignCalls int
	applyCalls  int
}

func newFakeOrderRepo(orders ...*model.Order) *fakeOrderRepo {
	f := &fakeOrderRepo{orders: map[string]*model.Order{}, tracking: map[string]string{}}
	for _, o := range orders {
		cp := *o
		if cp.PaymentStatus == "" {
			cp.PaymentStatus = model.PaymentUnpaid
		}
		f.orders[o.ID] = &cp
		if o.TrackingNumber != "" {
			f.tracking[o.TrackingNumber] = o.ID
		}
	}
	return f
}

func (f *fakeOrderRepo) get(id string) model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) FindByTrackingNumber(ctx context.Context, code string) (*model.Order, error) {
	f.mu.Lock()
	id, ok := f.tracking[code]
	f.findCalls++
	f.mu.Unlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	return f.FindByID(ctx, id)
}

func (f *fakeOrderRepo) FindByIDFragment(_ context.Context, fragment, userID string) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(o.ID), strings.ToLower(fragment)) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) TrackingNumberExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	_, ok := f.tracking[code]
	return ok, nil
}

func (f *fakeOrderRepo) TrackingNumbersWithPrefix(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for code := range f.tracking {
		if strings.HasPrefix(code, prefix) {
			out = append(out, code)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) AssignTrackingNumber(_ context.Context, orderID, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls++
	o, ok := f.orders[orderID]
	if !ok {
		return "", model.ErrNotFound
	}
	if o.TrackingNumber != "" {
		return o.TrackingNumber, nil
	}
	if f.raceOnAssign > 0 {
		// otra orden tomó el código entre la verificación y la escritura
		f.raceOnAssign--
		f.tracking[code] = "other-order"
		return "", model.ErrTrackingTaken
	}
	if _, taken := f.tracking[code]; taken {
		return "", model.ErrTrackingTaken
	}
	o.TrackingNumber = code
	f.tracking[code] = orderID
	return code, nil
}

func (f *fakeOrderRepo) ApplyPayment(_ context.Context, orderID string, expected model.Status, upd model.PaymentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return model.ErrNotFound
	}
	if f.staleOnApply != "" {
		o.Status = f.staleOnApply
		f.staleOnApply = ""
	}
	if o.Status != expected {
		return model.ErrStatusChanged
	}
	o.Status = upd.Status
	o.PaymentStatus = upd.PaymentStatus
	if upd.PaypalTransactionID != "" {
		o.PaypalTransactionID = upd.PaypalTransactionID
	}
	return nil
}

func (f *fakeOrderRepo) FindStale(context.Context, model.StaleFilter) ([]*model.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) MarkDelivered(context.Context, []string) ([]string, error) {
	return nil, nil
}
