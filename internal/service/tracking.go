package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"

	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/model"
)

const (
	trackingPrefix   = "SP"
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderPartLen     = 4
	suffixLen        = 4
	// 36^4 sufijos posibles por prefijo de orden
	suffixSpace = 36 * 36 * 36 * 36

	DefaultRandomAttempts = 8
)

var trackingPattern = regexp.MustCompile(`^SP[A-Z0-9]{8}$`)

// Generator produce números de guía: "SP" + 4 caracteres del id + 4 aleatorios.
// Generar no tiene efectos secundarios; persistir es responsabilidad del llamador.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	// pick reemplaza la fuente aleatoria en pruebas
	pick func(n int) int
}

// NewGenerator usa src como fuente aleatoria; con nil usa la fuente global.
func NewGenerator(src rand.Source) *Generator {
	g := &Generator{}
	if src != nil {
		g.rnd = rand.New(src)
	}
	return g
}

func (g *Generator) intN(n int) int {
	if g.pick != nil {
		return g.pick(n)
	}
	if g.rnd == nil {
		return rand.IntN(n)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.IntN(n)
}

// Generate devuelve un código con formato ^SP[A-Z0-9]{8}$ para la orden.
func (g *Generator) Generate(orderID string) string {
	return OrderPrefix(orderID) + encodeSuffix(g.intN(suffixSpace))
}

// OrderPrefix es la parte determinista del código: "SP" + últimos 4 caracteres
// alfanuméricos del id en mayúsculas, completando con '0' a la izquierda si faltan.
func OrderPrefix(orderID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(orderID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if len(clean) > orderPartLen {
		clean = clean[len(clean)-orderPartLen:]
	}
	return trackingPrefix + strings.Repeat("0", orderPartLen-len(clean)) + clean
}

func encodeSuffix(n int) string {
	buf := make([]byte, suffixLen)
	for i := suffixLen - 1; i >= 0; i-- {
		buf[i] = trackingAlphabet[n%len(trackingAlphabet)]
		n /= len(trackingAlphabet)
	}
	return string(buf)
}

// NormalizeTrackingCode pasa a mayúsculas y valida el formato público.
func NormalizeTrackingCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !trackingPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackingCode, raw)
	}
	return code, nil
}

// TrackingService asigna números de guía únicos a las órdenes.
type TrackingService struct {
	repo           OrderRepository
	gen            *Generator
	randomAttempts int
	metrics        *metrics.Collector
}

func NewTrackingService(r OrderRepository, g *Generator, randomAttempts int, m *metrics.Collector) *TrackingService {
	if g == nil {
		g = NewGenerator(nil)
	}
	if randomAttempts <= 0 {
		randomAttempts = DefaultRandomAttempts
	}
	return &TrackingService{repo: r, gen: g, randomAttempts: randomAttempts, metrics: m}
}

// Assign asigna un número de guía si la orden aún no tiene uno y lo deja en order.
//
// Cada intento verifica existencia y luego escribe con una actualización
// condicional (solo si la orden sigue sin guía); el índice único del almacén
// resuelve la carrera entre ambos pasos. Agotados los intentos aleatorios se
// recorre el espacio de sufijos libres, de modo que el ciclo siempre termina.
func (s *TrackingService) Assign(ctx context.Context, order *model.Order) (string, error) {
	if order.HasTracking() {
		return order.TrackingNumber, nil
	}

	for attempt := 0; attempt < s.randomAttempts; attempt++ {
		code := s.gen.Generate(order.ID)
		taken, err := s.repo.TrackingNumberExists(ctx, code)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		stored, err := s.store(ctx, order, code)
		if errors.Is(err, model.ErrTrackingTaken) {
			continue
		}
		return stored, err
	}

	prefix := OrderPrefix(order.ID)
	existing, err := s.repo.TrackingNumbersWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	used := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		used[c] = struct{}{}
	}
	if len(used) >= suffixSpace {
		return "", ErrTrackingExhausted
	}

	start := s.gen.intN(suffixSpace)
	for i := 0; i < suffixSpace; i++ {
		code := prefix + encodeSuffix((start+i)%suffixSpace)
		if _, ok := used[code]; ok {
			continue
		}
		stored, err := s.store(ctx, order, code)
		if errors.Is(err, model.ErrTrackingTaken) {
			used[code] = struct{}{}
			continue
		}
		return stored, err
	}
	return "", ErrTrackingExhausted
}

func (s *TrackingService) store(ctx context.Context, order *model.Order, code string) (string, error) {
	stored, err := s.repo.AssignTrackingNumber(ctx, order.ID, code)
	if err != nil {
		return "", err
	}
	// Si otra pasada ya le había asignado guía, el almacén devuelve la existente.
	order.TrackingNumber = stored
	if stored == code {
		s.metrics.TrackingAssigned()
	}
	return stored, nil
}
