package authflow

import "time"

// State del ciclo de envío de credenciales.
// Submitting existe solo durante la llamada; los estados observables entre
// requests son Idle, Pending2FA y RequiresCedula.
type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StatePending2FA     State = "pending_2fa"
	StateRequiresCedula State = "requires_cedula"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

// Pending es el estado retenido entre el login y la confirmación 2FA.
// El nonce solo vive aquí (memoria), nunca en el record de sesión.
type Pending struct {
	SessionID string
	Nonce     string
	Email     string
	CreatedAt time.Time
}
