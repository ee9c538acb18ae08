package service

import (
	"fmt"

	"order-tracking-service/internal/model"
)

// Orden del flujo normal. Cancelado es una salida lateral desde cualquier estado no final.
var statusRank = map[model.Status]int{
	model.StatusConfirmed:      0,
	model.StatusProcessing:     1,
	model.StatusPreparing:      2,
	model.StatusInTransit:      3,
	model.StatusOutForDelivery: 4,
	model.StatusDelivered:      5,
}

// Estados finales
var finalStates = map[model.Status]bool{
	model.StatusDelivered: true,
	model.StatusCancelled: true,
}

func IsValidStatus(s model.Status) bool {
	_, ok := statusRank[s]
	return ok || s == model.StatusCancelled
}

func IsTerminal(s model.Status) bool {
	return finalStates[s]
}

// CanTransition valida un cambio de estado: solo hacia adelante, nunca desde un estado final.
func CanTransition(from, to model.Status) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("%w: estado desconocido %q", ErrInvalidTransition, to)
	}
	if IsTerminal(from) {
		return ErrFinalState
	}
	if to == model.StatusCancelled {
		return nil
	}
	if statusRank[to] <= statusRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Resolve decide qué estado guardar cuando llega un estado solicitado por un
// proceso automático. Si el cambio no es válido (retroceso, mismo estado o
// estado final) se conserva el actual; solo un estado desconocido es error.
func Resolve(current, requested model.Status) (model.Status, error) {
	if !IsValidStatus(requested) {
		return current, fmt.Errorf("%w: estado desconocido %q", ErrInvalidTransition, requested)
	}
	if CanTransition(current, requested) != nil {
		return current, nil
	}
	return requested, nil
}
