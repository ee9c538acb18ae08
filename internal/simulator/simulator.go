package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/model"
)

const (
	DefaultInterval    = 10 * time.Minute
	DefaultStaleAfter  = 72 * time.Hour
	defaultPassTimeout = 2 * time.Minute
)

var (
	ErrPassInProgress = errors.New("ya hay una pasada del simulador en curso")
	ErrAlreadyRunning = errors.New("el simulador ya está iniciado")
)

// Store es lo que el simulador necesita del almacén de órdenes.
type Store interface {
	FindStale(ctx context.Context, f model.StaleFilter) ([]*model.Order, error)
	MarkDelivered(ctx context.Context, orderIDs []string) ([]string, error)
}

type TrackingAssigner interface {
	Assign(ctx context.Context, order *model.Order) (string, error)
}

// Publisher avisa a otros servicios de las órdenes entregadas.
type Publisher interface {
	PublishDelivered(ctx context.Context, orderIDs []string, deliveredAt time.Time) error
}

type Config struct {
	Interval    time.Duration
	StaleAfter  time.Duration
	PassTimeout time.Duration
}

type PassResult struct {
	PassID           string `json:"passId"`
	Selected         int    `json:"selected"`
	TrackingAssigned int    `json:"trackingAssigned"`
	Delivered        int    `json:"delivered"`
}

type Option func(*Simulator)

func WithClock(c clock.Clock) Option { return func(s *Simulator) { s.clock = c } }
func WithLogger(l *slog.Logger) Option { return func(s *Simulator) { s.logger = l } }
func WithMetrics(m *metrics.Collector) Option { return func(s *Simulator) { s.metrics = m } }
func WithPublisher(p Publisher) Option { return func(s *Simulator) { s.publisher = p } }

// Simulator avanza periódicamente las órdenes antiguas hacia "Entregado" y
// completa los números de guía que falten.
type Simulator struct {
	store     Store
	tracking  TrackingAssigner
	policy    DeliveryPolicy
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Collector
	cfg       Config

	passMu sync.Mutex

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(store Store, tracking TrackingAssigner, policy DeliveryPolicy, cfg Config, opts ...Option) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = defaultPassTimeout
	}
	if policy == nil {
		policy = NewRandomDeliveryPolicy(DefaultDeliveryProbability, nil)
	}
	s := &Simulator{
		store:    store,
		tracking: tracking,
		policy:   policy,
		clock:    clock.New(),
		logger:   slog.Default(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start programa una pasada cada Interval. El ticker se crea antes de volver,
// así un reloj simulado puede avanzarse apenas Start retorna.
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return ErrAlreadyRunning
	}
	ticker := s.clock.Ticker(s.cfg.Interval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ticker, s.stop, s.done)
	s.logger.Info("simulador de entregas iniciado",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("stale_after", s.cfg.StaleAfter))
	return nil
}

// Stop cancela las pasadas futuras. Una pasada en curso no se interrumpe:
// Stop espera a que termine.
func (s *Simulator) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("simulador de entregas detenido")
}

func (s *Simulator) loop(ticker *clock.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runScheduled()
		}
	}
}

// runScheduled nunca propaga errores: se registran y la siguiente pasada reintenta.
func (s *Simulator) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PassTimeout)
	defer cancel()

	res, err := s.RunOnce(ctx)
	if errors.Is(err, ErrPassInProgress) {
		s.logger.Warn("pasada omitida: otra sigue en curso")
		return
	}
	if err != nil {
		s.logger.Error("pasada del simulador abortada",
			slog.String("pass_id", res.PassID),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("pasada del simulador completada",
		slog.String("pass_id", res.PassID),
		slog.Int("selected", res.Selected),
		slog.Int("tracking_assigned", res.TrackingAssigned),
		slog.Int("delivered", res.Delivered))
}

// RunOnce ejecuta una pasada: selecciona órdenes no finales más antiguas que
// StaleAfter, completa números de guía y marca como entregadas, en una sola
// actualización, las que elija la política. Ante el primer error la pasada se aborta.
func (s *Simulator) RunOnce(ctx context.Context) (PassResult, error) {
	if !s.passMu.TryLock() {
		return PassResult{}, ErrPassInProgress
	}
	defer s.passMu.Unlock()

	res := PassResult{PassID: uuid.NewString()}
	res, err := s.run(ctx, res)
	if err != nil {
		s.metrics.SimulatorPass("aborted")
		return res, err
	}
	s.metrics.SimulatorPass("ok")
	s.metrics.OrdersDelivered(res.Delivered)
	return res, nil
}

func (s *Simulator) run(ctx context.Context, res PassResult) (PassResult, error) {
	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)
	orders, err := s.store.FindStale(ctx, model.StaleFilter{CreatedBefore: cutoff})
	if err != nil {
		return res, fmt.Errorf("seleccionando órdenes pendientes: %w", err)
	}
	res.Selected = len(orders)

	for _, o := range orders {
		if o.HasTracking() {
			continue
		}
		if _, err := s.tracking.Assign(ctx, o); err != nil {
			return res, fmt.Errorf("asignando número de guía a %s: %w", o.ID, err)
		}
		res.TrackingAssigned++
	}

	var deliver []string
	for _, o := range orders {
		if s.policy.ShouldDeliver(o) {
			deliver = append(deliver, o.ID)
		}
	}
	if len(deliver) == 0 {
		return res, nil
	}

	delivered, err := s.store.MarkDelivered(ctx, deliver)
	if err != nil {
		return res, fmt.Errorf("marcando %d órdenes como entregadas: %w", len(deliver), err)
	}
	res.Delivered = len(delivered)

	// Se anuncian solo las órdenes que el almacén cambió. Las entregas ya
	// quedaron guardadas; un fallo al publicar no aborta la pasada.
	if s.publisher != nil && len(delivered) > 0 {
		if err := s.publisher.PublishDelivered(ctx, delivered, s.clock.Now()); err != nil {
			s.logger.Warn("no se pudo publicar order_delivered",
				slog.String("pass_id", res.PassID),
				slog.String("error", err.Error()))
		}
	}
	return res, nil
}
