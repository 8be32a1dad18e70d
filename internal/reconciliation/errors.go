package reconciliation

import "errors"

// Reconciliation errors. They end up in a row's Resolution, never abort a pass.
var (
	ErrAmbiguous           = errors.New("pago parcial sin base para clasificar")
	ErrResolutionExhausted = errors.New("intentos de resolución agotados")
	ErrTransport           = errors.New("falla de comunicación con el servicio externo")
	ErrSuperseded          = errors.New("plan reemplazado, resultado descartado")
	ErrTimedOut            = errors.New("tiempo de conciliación agotado")
)
