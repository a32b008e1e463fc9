package session

import (
	"time"

	"vet-clinical-support/internal/ports/clinical"
)

// Identidad de desarrollo reservada. Si un Record persistido trae este
// veterinario, Hydrate lo descarta: nunca debe llegar a producción.
const (
	DevVeterinarianID    = "dev-vet-000"
	DevVeterinarianEmail = "dev@vetsupport.local"
)

// Record es el estado por navegador que antes vivía en local storage:
// perfil cacheado, preferencia de tema y el acuse del aviso de privacidad.
// Es la única fuente de verdad de "hay sesión activa" tras un reload.
type Record struct {
	ID string

	Profile       *clinical.VeterinarianProfile
	ProviderToken string // access token del proveedor BaaS (path legado)

	Theme           string
	PrivacyAccepted bool

	// CurrentView es el valor único de vista del router; PendingCheckout
	// guarda el session_id de pago consumido de un deep link hasta que el
	// polling lo resuelve.
	CurrentView     string
	PendingCheckout string

	// Loading es true solo mientras Hydrate está en curso; el router de
	// vistas no redirige a landing hasta que baja a false.
	Loading bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot es lo que consume el router de vistas.
type Snapshot struct {
	Authenticated bool
	Loading       bool
	Profile       *clinical.VeterinarianProfile
}

// Prefs agrupa las preferencias persistidas no ligadas al perfil.
type Prefs struct {
	Theme           string
	PrivacyAccepted bool
}
