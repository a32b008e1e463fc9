package cedula

import "time"

// SkipLimit es el tope de "omitir verificación". El conteo autoritativo
// vive en el servidor; este valor solo calcula los intentos restantes
// que se muestran y gatea el botón en el cliente.
const SkipLimit = 3

// Source indica desde qué pantalla se originó el gate.
// @Enum register, login
type Source string

const (
	SourceRegister Source = "register"
	SourceLogin    Source = "login"
)

// FlowState es el estado transitorio del sub-flujo de cédula. Vive solo en
// memoria: se crea cuando el backend señala gating y se destruye al entrar
// la sesión o al cancelar explícitamente. Nunca se persiste (el conteo de
// skips cacheado no es confiable entre reloads; manda el servidor).
type FlowState struct {
	SessionID string
	Source    Source

	VeterinarianID string
	Email          string
	Password       string // solo en memoria, para el re-login
	Cedula         string
	FullName       string

	NeedsUpload        bool
	VerificationStatus string
	SkipCount          int
	CanSkip            bool
	Message            string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingSkips calcula los intentos restantes con el último conteo
// conocido del servidor.
func (f FlowState) RemainingSkips() int {
	rem := SkipLimit - f.SkipCount
	if rem < 0 {
		return 0
	}
	return rem
}
