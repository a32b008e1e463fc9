package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"vet-clinical-support/internal/domain/cedula"
	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBusy         = errors.New("ya hay un envío en curso para esta sesión")
	ErrNoPending    = errors.New("no hay verificación 2FA pendiente")
)

// Result es la salida de un ciclo de envío. Un gating (2FA, cédula) llega
// aquí como estado, nunca como error: los errores son fallos reales.
type Result struct {
	State   State
	Message string
	Profile *clinical.VeterinarianProfile
	Flow    *cedula.FlowState
}

// API es lo que el flujo necesita del backend clínico.
type API interface {
	Register(ctx context.Context, in clinical.RegisterInput) (clinical.LoginOutcome, error)
	Login(ctx context.Context, creds clinical.Credentials) (clinical.LoginOutcome, error)
	VerifyTwoFactor(ctx context.Context, nonce, code string) (clinical.LoginOutcome, error)
}

// Service es el controlador del ciclo de credenciales:
// Idle → Submitting → {Pending2FA, RequiresCedula, Authenticated, Failed}.
type Service struct {
	api      API
	sessions *session.Service
	pending  Repository
	flows    cedula.Repository
	log      logger.Logger
	now      func() time.Time

	// un solo envío en vuelo por sesión
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewService(api API, sessions *session.Service, pending Repository, flows cedula.Repository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		api:      api,
		sessions: sessions,
		pending:  pending,
		flows:    flows,
		log:      log,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}

// Submit envía credenciales y transiciona según el status del backend.
// En fallo (no-2xx, body no parseable) vuelve a Idle sin reintentos.
func (s *Service) Submit(ctx context.Context, sessionID string, creds clinical.Credentials) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return Result{State: StateIdle}, ErrInvalidInput
	}
	if !s.acquire(sessionID) {
		return Result{State: StateSubmitting}, ErrBusy
	}
	defer s.release(sessionID)

	outcome, err := s.api.Login(ctx, creds)
	if err != nil {
		return Result{State: StateIdle}, err
	}
	return s.applyOutcome(ctx, sessionID, outcome, creds, cedula.SourceLogin)
}

// Register da de alta y decodifica la misma unión de resultados que el login
// (el alta normalmente desemboca en requires_cedula_flow).
func (s *Service) Register(ctx context.Context, sessionID string, in clinical.RegisterInput) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return Result{State: StateIdle}, ErrInvalidInput
	}
	if !s.acquire(sessionID) {
		return Result{State: StateSubmitting}, ErrBusy
	}
	defer s.release(sessionID)

	outcome, err := s.api.Register(ctx, in)
	if err != nil {
		return Result{State: StateIdle}, err
	}
	creds := clinical.Credentials{Email: in.Email, Password: in.Password}
	return s.applyOutcome(ctx, sessionID, outcome, creds, cedula.SourceRegister)
}

// ConfirmTwoFactor envía nonce + código. En rechazo la sesión sigue en
// Pending2FA (el nonce se conserva); en confirmación adopta el perfil.
func (s *Service) ConfirmTwoFactor(ctx context.Context, sessionID, code string) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	code = strings.TrimSpace(code)
	if sessionID == "" || code == "" {
		return Result{State: StatePending2FA}, ErrInvalidInput
	}
	if !s.acquire(sessionID) {
		return Result{State: StateSubmitting}, ErrBusy
	}
	defer s.release(sessionID)

	p, err := s.pending.Get(ctx, sessionID)
	if err != nil {
		return Result{State: StateIdle}, ErrNoPending
	}

	outcome, err := s.api.VerifyTwoFactor(ctx, p.Nonce, code)
	if err != nil {
		// código rechazado: se mantiene el estado (el input se limpia en UI)
		return Result{State: StatePending2FA}, err
	}
	return s.applyOutcome(ctx, sessionID, outcome, clinical.Credentials{Email: p.Email}, cedula.SourceLogin)
}

// Status reporta el estado observable entre requests.
func (s *Service) Status(ctx context.Context, sessionID string) (Result, error) {
	snap, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if snap.Authenticated {
		return Result{State: StateAuthenticated, Profile: snap.Profile}, nil
	}
	if _, err := s.pending.Get(ctx, sessionID); err == nil {
		return Result{State: StatePending2FA}, nil
	}
	if f, err := s.flows.Get(ctx, sessionID); err == nil {
		return Result{State: StateRequiresCedula, Flow: &f}, nil
	}
	return Result{State: StateIdle}, nil
}

// Cancel descarta el nonce 2FA y el flujo de cédula de la sesión.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	if err := s.pending.Delete(ctx, sessionID); err != nil {
		return err
	}
	return s.flows.Delete(ctx, sessionID)
}

func (s *Service) applyOutcome(
	ctx context.Context,
	sessionID string,
	outcome clinical.LoginOutcome,
	creds clinical.Credentials,
	source cedula.Source,
) (Result, error) {
	switch outcome.Kind {
	case clinical.OutcomePendingTwoFA:
		now := s.now()
		err := s.pending.Put(ctx, Pending{
			SessionID: sessionID,
			Nonce:     outcome.Nonce,
			Email:     strings.TrimSpace(creds.Email),
			CreatedAt: now,
		})
		if err != nil {
			return Result{State: StateIdle}, err
		}
		return Result{State: StatePending2FA, Message: outcome.Message}, nil

	case clinical.OutcomeCedulaRequired:
		// Nunca toca el store de sesión: el gate bloquea el dashboard.
		gate := outcome.Gate
		if gate == nil || strings.TrimSpace(gate.VeterinarianID) == "" {
			return Result{State: StateIdle}, clinical.ErrGateWithoutVeterinarian
		}
		now := s.now()
		flow := cedula.FlowState{
			SessionID:          sessionID,
			Source:             source,
			VeterinarianID:     gate.VeterinarianID,
			Email:              firstNonEmpty(gate.Email, creds.Email),
			Password:           creds.Password,
			Cedula:             gate.Cedula,
			FullName:           gate.FullName,
			NeedsUpload:        gate.NeedsUpload,
			VerificationStatus: gate.VerificationStatus,
			SkipCount:          gate.SkipCount,
			CanSkip:            gate.CanSkip,
			Message:            gate.Message,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.flows.Put(ctx, flow); err != nil {
			return Result{State: StateIdle}, err
		}
		_ = s.pending.Delete(ctx, sessionID)
		return Result{State: StateRequiresCedula, Message: gate.Message, Flow: &flow}, nil

	case clinical.OutcomeAuthenticated:
		if err := s.sessions.Login(ctx, sessionID, *outcome.Profile); err != nil {
			return Result{State: StateIdle}, err
		}
		_ = s.pending.Delete(ctx, sessionID)
		_ = s.flows.Delete(ctx, sessionID)
		return Result{
			State:   StateAuthenticated,
			Message: outcome.Message,
			Profile: outcome.Profile,
		}, nil

	default:
		return Result{State: StateIdle}, clinical.ErrUnknownOutcome
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}
