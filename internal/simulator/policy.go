package simulator

import (
	"math/rand/v2"
	"sync"

	"order-tracking-service/internal/model"
)

const DefaultDeliveryProbability = 0.7

// DeliveryPolicy decide si una orden seleccionada se da por entregada en esta
// pasada. Reemplaza el feed de estados de una transportadora real.
type DeliveryPolicy interface {
	ShouldDeliver(o *model.Order) bool
}

// RandomDeliveryPolicy entrega cada orden de forma independiente con probabilidad fija.
type RandomDeliveryPolicy struct {
	Probability float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomDeliveryPolicy con src nil usa la fuente aleatoria global.
func NewRandomDeliveryPolicy(probability float64, src rand.Source) *RandomDeliveryPolicy {
	p := &RandomDeliveryPolicy{Probability: probability}
	if src != nil {
		p.rnd = rand.New(src)
	}
	return p
}

func (p *RandomDeliveryPolicy) ShouldDeliver(_ *model.Order) bool {
	switch {
	case p.Probability <= 0:
		return false
	case p.Probability >= 1:
		return true
	}
	return p.float64() < p.Probability
}

func (p *RandomDeliveryPolicy) float64() float64 {
	if p.rnd == nil {
		return rand.Float64()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64()
}

// PolicyFunc adapta una función a DeliveryPolicy.
type PolicyFunc func(o *model.Order) bool

func (f PolicyFunc) ShouldDeliver(o *model.Order) bool { return f(o) }
