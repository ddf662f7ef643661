package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrStateConflict     = errors.New("conflicto con el estado actual")
	ErrInvariantViolated = errors.New("invariante de inventario violada")
	ErrDuplicate         = errors.New("recurso duplicado")
)
