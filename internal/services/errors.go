package services

import "errors"

// Common service errors
var (
	ErrNotFound     = errors.New("registro no encontrado")
	ErrInvalidState = errors.New("transición de estado inválida")
	ErrDuplicate    = errors.New("registro duplicado")
	ErrPlanNotFound = errors.New("plan no encontrado o expirado")
	ErrUpstream     = errors.New("servicio externo no disponible")
	ErrInvalidInput = errors.New("datos de entrada inválidos")
)
