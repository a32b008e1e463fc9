package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Parámetros del polling de pago: intentos fijos, delay fijo, sin backoff.
const (
	PollMaxAttempts = 5
	PollInterval    = 2 * time.Second
)

// PollOutcome estados terminales del polling.
// @Enum success, expired, error, timeout
type PollOutcome string

const (
	PollSuccess PollOutcome = "success"
	PollExpired PollOutcome = "expired"
	PollError   PollOutcome = "error"
	PollTimeout PollOutcome = "timeout"
)

type PollResult struct {
	Outcome PollOutcome
	Message string
	Profile *clinical.VeterinarianProfile
}

// API sub-contrato de pagos + catálogo de paquetes.
type API interface {
	MembershipPackages(ctx context.Context) ([]clinical.MembershipPackage, error)
	CreateMembershipCheckout(ctx context.Context, vetID, packageID string) (clinical.CheckoutSession, error)
	CreateConsultationsCheckout(ctx context.Context, vetID, packID string) (clinical.CheckoutSession, error)
	CheckoutStatus(ctx context.Context, sessionID string) (clinical.CheckoutStatus, error)
}

// Service maneja paquetes de membresía, checkout y el retorno de pago.
type Service struct {
	api      API
	sessions *session.Service
	log      logger.Logger

	attempts int
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewService(api API, sessions *session.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		api:      api,
		sessions: sessions,
		log:      log,
		attempts: PollMaxAttempts,
		interval: PollInterval,
		sleep:    sleepCtx,
	}
}

func (s *Service) Packages(ctx context.Context) ([]clinical.MembershipPackage, error) {
	return s.api.MembershipPackages(ctx)
}

func (s *Service) StartMembershipCheckout(ctx context.Context, vetID, packageID string) (clinical.CheckoutSession, error) {
	if strings.TrimSpace(vetID) == "" || strings.TrimSpace(packageID) == "" {
		return clinical.CheckoutSession{}, ErrInvalidInput
	}
	return s.api.CreateMembershipCheckout(ctx, vetID, packageID)
}

func (s *Service) StartConsultationsCheckout(ctx context.Context, vetID, packID string) (clinical.CheckoutSession, error) {
	if strings.TrimSpace(vetID) == "" || strings.TrimSpace(packID) == "" {
		return clinical.CheckoutSession{}, ErrInvalidInput
	}
	return s.api.CreateConsultationsCheckout(ctx, vetID, packID)
}

// AwaitPayment es el retorno del checkout: consulta el status hasta el tope
// de intentos con delay fijo. Terminales: success, expired, error, timeout.
// En paid hace exactamente un Login con el perfil ya actualizado que manda
// el backend; sin cancelación más allá del context.
func (s *Service) AwaitPayment(ctx context.Context, browserSessionID, checkoutSessionID string) (PollResult, error) {
	checkoutSessionID = strings.TrimSpace(checkoutSessionID)
	if checkoutSessionID == "" {
		return PollResult{Outcome: PollError}, ErrInvalidInput
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		st, err := s.api.CheckoutStatus(ctx, checkoutSessionID)
		if err != nil {
			s.log.Warn("checkout status failed", map[string]any{
				"checkout_session": checkoutSessionID,
				"attempt":          attempt,
				"error":            err.Error(),
			})
			return PollResult{Outcome: PollError, Message: err.Error()}, nil
		}

		switch st.PaymentStatus {
		case clinical.PaymentPaid:
			if st.Profile != nil {
				if err := s.sessions.Login(ctx, browserSessionID, *st.Profile); err != nil {
					return PollResult{Outcome: PollError, Message: err.Error()}, nil
				}
			}
			return PollResult{Outcome: PollSuccess, Profile: st.Profile}, nil

		case clinical.PaymentExpired:
			return PollResult{Outcome: PollExpired}, nil
		}

		// pending: esperar el delay fijo antes del siguiente intento
		if attempt < s.attempts {
			if err := s.sleep(ctx, s.interval); err != nil {
				return PollResult{Outcome: PollError, Message: err.Error()}, nil
			}
		}
	}

	return PollResult{Outcome: PollTimeout}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
