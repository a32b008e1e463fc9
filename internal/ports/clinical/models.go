package clinical

import "time"

// MembershipTier define los niveles de membresía.
// @Enum none, basic, professional, premium
type MembershipTier string

const (
	TierNone         MembershipTier = "none"
	TierBasic        MembershipTier = "basic"
	TierProfessional MembershipTier = "professional"
	TierPremium      MembershipTier = "premium"
)

// VeterinarianProfile es el perfil del veterinario autenticado.
// Se reemplaza completo en cada login/refresh; nunca se parcha campo a campo.
type VeterinarianProfile struct {
	ID    string
	Name  string
	Email string
	Phone string

	Cedula          string // cédula profesional
	Specialty       string
	YearsExperience int
	Institution     string

	MembershipTier         MembershipTier
	ConsultationsRemaining int
	MembershipExpires      *time.Time

	Verified bool
}

type Credentials struct {
	Email    string
	Password string
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	Phone           string
	Cedula          string
	Specialty       string
	YearsExperience int
	Institution     string
}

// OutcomeKind discrimina el resultado de un login/register/verify-2fa.
// El backend señala gating vía el campo "status" del body; eso NO es un error.
type OutcomeKind string

const (
	OutcomeAuthenticated  OutcomeKind = "authenticated"
	OutcomePendingTwoFA   OutcomeKind = "pending_2fa"
	OutcomeCedulaRequired OutcomeKind = "requires_cedula_flow"
)

// LoginOutcome es la unión etiquetada decodificada una sola vez en el adapter.
// Exactamente uno de Profile / Nonce / Gate está poblado según Kind.
type LoginOutcome struct {
	Kind OutcomeKind

	Profile *VeterinarianProfile // Kind == OutcomeAuthenticated
	Nonce   string               // Kind == OutcomePendingTwoFA
	Gate    *CedulaGate          // Kind == OutcomeCedulaRequired

	Message string
}

// CedulaGate son los campos que el backend manda cuando exige verificación
// de cédula antes de abrir sesión.
type CedulaGate struct {
	VeterinarianID     string
	Email              string
	Cedula             string
	FullName           string
	NeedsUpload        bool
	VerificationStatus string
	SkipCount          int
	CanSkip            bool
	Message            string
}

// Document es un archivo de cédula a subir (multipart).
type Document struct {
	FileName string
	Content  []byte
}

// VerificationStatus valores conocidos del endpoint de verificación.
const (
	VerificationVerified = "verified"
	VerificationPending  = "pending"
	VerificationRejected = "rejected"
)

type VerifyResult struct {
	Status  string // verified | pending | otro
	Message string
}

type SkipResult struct {
	SkipCount int
	CanSkip   bool
	Message   string
}

// ConsultationStatus estado del wizard de consulta.
// @Enum draft, in_progress, completed
type ConsultationStatus string

const (
	ConsultationDraft      ConsultationStatus = "draft"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
)

// Consultation es una consulta clínica tal como la devuelve el backend.
// El cliente nunca la borra; solo crea (paso 1) y actualiza payload (paso 2).
type Consultation struct {
	ID              string
	VeterinarianID  string
	Category        string         // clave de especie
	FormData        map[string]any // campos específicos por especie
	DetallePaciente string         // motivo en texto libre
	Status          ConsultationStatus
	Analysis        *string
	Rating          *int // 1..5
	CreatedAt       time.Time
}

type ConsultationCreate struct {
	Category        string
	FormData        map[string]any
	DetallePaciente string
}

// ConsultationPayload es la actualización del paso 2. Punteros: nil = no tocar.
type ConsultationPayload struct {
	FormData        map[string]any
	DetallePaciente *string
	Status          *ConsultationStatus
	Rating          *int
}

type AnimalCategory struct {
	Key   string
	Label string
}

type MembershipPackage struct {
	ID            string
	Name          string
	Tier          MembershipTier
	Consultations int
	PriceMXN      int
}

type CheckoutSession struct {
	SessionID string
	URL       string
}

// PaymentStatus valores del endpoint de status de checkout.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
	PaymentExpired = "expired"
)

// CheckoutStatus es la respuesta del polling de pago. Cuando el pago se
// confirma, el backend devuelve el perfil ya actualizado (membresía nueva).
type CheckoutStatus struct {
	PaymentStatus string
	Profile       *VeterinarianProfile
}
