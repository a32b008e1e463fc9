package clinical

import (
	"context"
	"errors"
)

var (
	// ErrGateWithoutVeterinarian: el backend pidió el flujo de cédula pero
	// no identificó al veterinario; sin id el flujo es un callejón sin salida.
	ErrGateWithoutVeterinarian = errors.New("el servidor pidió verificación de cédula sin identificar al veterinario")
	// ErrUnknownOutcome: el adapter devolvió una variante no contemplada.
	ErrUnknownOutcome = errors.New("resultado de autenticación desconocido")
)

// AuthAPI cubre registro, login y 2FA contra el backend clínico.
// Las tres operaciones de credenciales devuelven LoginOutcome: el gating
// (pending_2fa, requires_cedula_flow) se decodifica aquí, no en los handlers.
type AuthAPI interface {
	Register(ctx context.Context, in RegisterInput) (LoginOutcome, error)
	Login(ctx context.Context, creds Credentials) (LoginOutcome, error)
	VerifyTwoFactor(ctx context.Context, nonce, code string) (LoginOutcome, error)
	FetchProfile(ctx context.Context, vetID string) (VeterinarianProfile, error)
}

// CedulaAPI cubre el sub-flujo de verificación de cédula profesional.
type CedulaAPI interface {
	UploadDocument(ctx context.Context, vetID string, doc Document) error
	VerifyLicense(ctx context.Context, vetID, cedula, fullName string) (VerifyResult, error)
	SkipVerification(ctx context.Context, vetID string) (SkipResult, error)
}

// ConsultationsAPI cubre el wizard de consulta e historial.
type ConsultationsAPI interface {
	CreateConsultation(ctx context.Context, vetID string, in ConsultationCreate) (Consultation, error)
	UpdatePayload(ctx context.Context, vetID, consultationID string, in ConsultationPayload) (Consultation, error)
	GetConsultation(ctx context.Context, vetID, consultationID string) (Consultation, error)
	History(ctx context.Context, vetID string) ([]Consultation, error)
	Analyze(ctx context.Context, vetID, consultationID string) (Consultation, error)
}

// CatalogAPI cubre catálogos de solo lectura.
type CatalogAPI interface {
	AnimalCategories(ctx context.Context) ([]AnimalCategory, error)
	MembershipPackages(ctx context.Context) ([]MembershipPackage, error)
}

// PaymentsAPI cubre creación de sesiones de checkout y su polling.
type PaymentsAPI interface {
	CreateMembershipCheckout(ctx context.Context, vetID, packageID string) (CheckoutSession, error)
	CreateConsultationsCheckout(ctx context.Context, vetID, packID string) (CheckoutSession, error)
	CheckoutStatus(ctx context.Context, sessionID string) (CheckoutStatus, error)
}

// API agrupa todo el contrato del backend clínico (lo implementa el adapter).
type API interface {
	AuthAPI
	CedulaAPI
	ConsultationsAPI
	CatalogAPI
	PaymentsAPI
}
