package model

import "errors"

// Errores que devuelve cualquier implementación del almacén de órdenes.
var (
	ErrNotFound             = errors.New("orden no encontrada")
	ErrDatastoreUnavailable = errors.New("almacén de órdenes no disponible")
	ErrTrackingTaken        = errors.New("número de guía ya asignado a otra orden")
	ErrStatusChanged        = errors.New("el estado de la orden cambió durante la actualización")
	ErrAlreadyExists        = errors.New("la orden ya existe")
)
