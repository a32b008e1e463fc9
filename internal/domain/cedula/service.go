package cedula

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBusy         = errors.New("ya hay un envío en curso para esta sesión")

	// ErrNoActiveFlow: no hay gate activo para la sesión. La pantalla muestra
	// un callejón sin salida que manda de vuelta al login; nunca redirige sola.
	ErrNoActiveFlow = errors.New("no hay un flujo de verificación activo; vuelve a iniciar sesión")

	// ErrStillGated: la verificación/skip pasó pero el backend sigue
	// exigiendo el flujo. Se queda en esta pantalla (corta el loop de
	// redirecciones).
	ErrStillGated = errors.New("el servidor sigue requiriendo verificación")

	// ErrSkipExhausted: sin intentos de omisión restantes del lado cliente.
	ErrSkipExhausted = errors.New("sin omisiones disponibles")

	// ErrMustVerify: el servidor agotó las omisiones; ya solo queda verificar.
	ErrMustVerify = errors.New("se agotaron las omisiones: es necesario verificar la cédula")

	// ErrVerificationRejected: el endpoint de verificación no devolvió
	// verified ni pending.
	ErrVerificationRejected = errors.New("no se pudo verificar la cédula")

	// ErrReloginRequired: el re-login tras verificar pidió un paso extra
	// (p.ej. 2FA); hay que volver a la pantalla de login.
	ErrReloginRequired = errors.New("se requiere un paso adicional; vuelve a iniciar sesión")
)

// API es lo que el flujo necesita del backend: el sub-contrato de cédula
// más el login para el re-intento posterior.
type API interface {
	UploadDocument(ctx context.Context, vetID string, doc clinical.Document) error
	VerifyLicense(ctx context.Context, vetID, cedula, fullName string) (clinical.VerifyResult, error)
	SkipVerification(ctx context.Context, vetID string) (clinical.SkipResult, error)
	Login(ctx context.Context, creds clinical.Credentials) (clinical.LoginOutcome, error)
}

// Result de un intento de verify/skip.
type Result struct {
	Authenticated bool
	Profile       *clinical.VeterinarianProfile
	Flow          *FlowState
	Message       string
}

// VerifyInput: datos de la pantalla. Cedula/FullName vacíos usan los del
// flow; Document es opcional (solo si needs_upload).
type VerifyInput struct {
	Cedula   string
	FullName string
	Document *clinical.Document
}

// Service gatea el acceso al dashboard hasta que la cédula esté verificada,
// con una vía de escape acotada (skip). El invariante: nunca abre sesión sin
// un resultado verified/pending o un skip aprobado por el servidor; el
// cliente jamás fabrica el éxito localmente.
type Service struct {
	api      API
	sessions *session.Service
	flows    Repository
	log      logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewService(api API, sessions *session.Service, flows Repository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		api:      api,
		sessions: sessions,
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

// State devuelve el flow activo de la sesión (para pintar la pantalla).
func (s *Service) State(ctx context.Context, sessionID string) (FlowState, error) {
	f, err := s.flows.Get(ctx, strings.TrimSpace(sessionID))
	if err != nil || strings.TrimSpace(f.VeterinarianID) == "" {
		return FlowState{}, ErrNoActiveFlow
	}
	return f, nil
}

// Cancel destruye el flow (cancelación explícita del usuario).
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	return s.flows.Delete(ctx, strings.TrimSpace(sessionID))
}

// Verify corre los pasos secuenciales: upload opcional → verificar →
// re-login. Cada paso falla rápido y reporta su propio error.
func (s *Service) Verify(ctx context.Context, sessionID string, in VerifyInput) (Result, error) {
	flow, err := s.State(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !s.acquire(sessionID) {
		return Result{Flow: &flow}, ErrBusy
	}
	defer s.release(sessionID)

	cedulaNum := firstNonEmpty(in.Cedula, flow.Cedula)
	fullName := firstNonEmpty(in.FullName, flow.FullName)
	if cedulaNum == "" || fullName == "" {
		return Result{Flow: &flow}, ErrInvalidInput
	}

	// 1) upload del documento, si viene
	if in.Document != nil {
		if err := s.api.UploadDocument(ctx, flow.VeterinarianID, *in.Document); err != nil {
			return Result{Flow: &flow}, err
		}
		flow.NeedsUpload = false
	}

	// 2) verificación contra el padrón
	vr, err := s.api.VerifyLicense(ctx, flow.VeterinarianID, cedulaNum, fullName)
	if err != nil {
		s.saveFlow(ctx, flow)
		return Result{Flow: &flow}, err
	}
	flow.VerificationStatus = vr.Status
	flow.Cedula = cedulaNum
	flow.FullName = fullName

	if vr.Status != clinical.VerificationVerified && vr.Status != clinical.VerificationPending {
		s.saveFlow(ctx, flow)
		if strings.TrimSpace(vr.Message) != "" {
			return Result{Flow: &flow}, fmt.Errorf("%w: %s", ErrVerificationRejected, vr.Message)
		}
		return Result{Flow: &flow}, ErrVerificationRejected
	}

	// 3) re-login con las mismas credenciales
	return s.relogin(ctx, sessionID, flow, vr.Message)
}

// Skip usa la vía de escape acotada. El conteo del servidor es la verdad:
// el contador local solo gatea el botón y se sobreescribe en cada re-gate.
func (s *Service) Skip(ctx context.Context, sessionID string) (Result, error) {
	flow, err := s.State(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !s.acquire(sessionID) {
		return Result{Flow: &flow}, ErrBusy
	}
	defer s.release(sessionID)

	if !flow.CanSkip || flow.RemainingSkips() <= 0 {
		return Result{Flow: &flow}, ErrSkipExhausted
	}

	sr, err := s.api.SkipVerification(ctx, flow.VeterinarianID)
	if err != nil {
		return Result{Flow: &flow}, err
	}
	flow.SkipCount = sr.SkipCount
	flow.CanSkip = sr.CanSkip

	return s.relogin(ctx, sessionID, flow, sr.Message)
}

// relogin reintenta el login y decide: adoptar sesión, o quedarse aquí si
// el backend sigue gateando (actualizando el flow con los datos del server).
func (s *Service) relogin(ctx context.Context, sessionID string, flow FlowState, stepMessage string) (Result, error) {
	outcome, err := s.api.Login(ctx, clinical.Credentials{
		Email:    flow.Email,
		Password: flow.Password,
	})
	if err != nil {
		s.saveFlow(ctx, flow)
		return Result{Flow: &flow}, err
	}

	switch outcome.Kind {
	case clinical.OutcomeAuthenticated:
		if err := s.sessions.Login(ctx, sessionID, *outcome.Profile); err != nil {
			return Result{Flow: &flow}, err
		}
		if err := s.flows.Delete(ctx, sessionID); err != nil {
			s.log.Warn("cedula flow cleanup failed", map[string]any{"error": err.Error()})
		}
		return Result{
			Authenticated: true,
			Profile:       outcome.Profile,
			Message:       firstNonEmpty(stepMessage, outcome.Message),
		}, nil

	case clinical.OutcomeCedulaRequired:
		// Seguimos gateados: adoptar los conteos del servidor y quedarnos.
		gate := outcome.Gate
		if gate != nil {
			flow.VerificationStatus = firstNonEmpty(gate.VerificationStatus, flow.VerificationStatus)
			flow.SkipCount = gate.SkipCount
			flow.CanSkip = gate.CanSkip
			flow.Message = gate.Message
			flow.NeedsUpload = gate.NeedsUpload
		}
		s.saveFlow(ctx, flow)

		if gate != nil && (!gate.CanSkip || flow.RemainingSkips() <= 0) {
			return Result{Flow: &flow}, ErrMustVerify
		}
		msg := ""
		if gate != nil {
			msg = gate.Message
		}
		if strings.TrimSpace(msg) != "" {
			return Result{Flow: &flow}, fmt.Errorf("%w: %s", ErrStillGated, msg)
		}
		return Result{Flow: &flow}, ErrStillGated

	default:
		// p.ej. pending_2fa: no lo resolvemos desde esta pantalla
		s.saveFlow(ctx, flow)
		return Result{Flow: &flow}, ErrReloginRequired
	}
}

func (s *Service) saveFlow(ctx context.Context, flow FlowState) {
	flow.UpdatedAt = s.now()
	if err := s.flows.Put(ctx, flow); err != nil {
		s.log.Warn("cedula flow persist failed", map[string]any{"error": err.Error()})
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}
