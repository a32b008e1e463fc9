package consultations

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrBusy          = errors.New("ya hay una operación en curso para esta consulta")
	ErrInvalidRating = errors.New("la calificación debe estar entre 1 y 5")

	// ErrPremiumRequired gatea la interpretación de laboratorio.
	ErrPremiumRequired = errors.New("se requiere membresía activa o consultas disponibles")
)

// API es el sub-contrato del backend que usa este módulo.
type API interface {
	clinical.ConsultationsAPI
	AnimalCategories(ctx context.Context) ([]clinical.AnimalCategory, error)
}

// Mirror replica consultas al path legado (filas del proveedor BaaS).
// Best-effort: un fallo del mirror nunca rompe el flujo principal.
type Mirror interface {
	MirrorConsultation(ctx context.Context, accessToken string, c clinical.Consultation) error
}

// LabStorage sube resultados de laboratorio al object storage legado y
// registra la fila en medical_images.
type LabStorage interface {
	StoreLabImage(ctx context.Context, accessToken, vetID, consultationID, fileName string, content []byte) (string, error)
}

// Service orquesta el wizard de consulta y el historial. El backend es el
// dueño de los datos; aquí solo hay validación, gating y single-flight por
// consulta (cada submit deshabilita su control hasta que la llamada cierra).
type Service struct {
	api    API
	mirror Mirror     // opcional
	lab    LabStorage // opcional
	log    logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewService(api API, mirror Mirror, lab LabStorage, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		api:      api,
		mirror:   mirror,
		lab:      lab,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *Service) Categories(ctx context.Context) ([]clinical.AnimalCategory, error) {
	return s.api.AnimalCategories(ctx)
}

// SubmitStep1 crea la consulta en el backend (paso 1 del wizard).
func (s *Service) SubmitStep1(ctx context.Context, vetID, providerToken string, in Step1Input) (clinical.Consultation, error) {
	vetID = strings.TrimSpace(vetID)
	if vetID == "" || strings.TrimSpace(in.Category) == "" {
		return clinical.Consultation{}, ErrInvalidInput
	}
	if !s.acquire("create:" + vetID) {
		return clinical.Consultation{}, ErrBusy
	}
	defer s.release("create:" + vetID)

	c, err := s.api.CreateConsultation(ctx, vetID, clinical.ConsultationCreate{
		Category:        strings.TrimSpace(in.Category),
		FormData:        in.FormData,
		DetallePaciente: strings.TrimSpace(in.DetallePaciente),
	})
	if err != nil {
		return clinical.Consultation{}, err
	}

	s.mirrorBestEffort(ctx, providerToken, c)
	return c, nil
}

// SubmitStep2 actualiza el payload (paso 2). Complete cierra la consulta.
func (s *Service) SubmitStep2(ctx context.Context, vetID, providerToken, consultationID string, in Step2Input) (clinical.Consultation, error) {
	vetID = strings.TrimSpace(vetID)
	consultationID = strings.TrimSpace(consultationID)
	if vetID == "" || consultationID == "" {
		return clinical.Consultation{}, ErrInvalidInput
	}
	if !s.acquire(consultationID) {
		return clinical.Consultation{}, ErrBusy
	}
	defer s.release(consultationID)

	status := clinical.ConsultationInProgress
	if in.Complete {
		status = clinical.ConsultationCompleted
	}
	c, err := s.api.UpdatePayload(ctx, vetID, consultationID, clinical.ConsultationPayload{
		FormData:        in.FormData,
		DetallePaciente: in.DetallePaciente,
		Status:          &status,
	})
	if err != nil {
		return clinical.Consultation{}, err
	}

	s.mirrorBestEffort(ctx, providerToken, c)
	return c, nil
}

func (s *Service) Get(ctx context.Context, vetID, consultationID string) (clinical.Consultation, error) {
	if strings.TrimSpace(consultationID) == "" {
		return clinical.Consultation{}, ErrInvalidInput
	}
	return s.api.GetConsultation(ctx, vetID, consultationID)
}

func (s *Service) History(ctx context.Context, vetID string) ([]clinical.Consultation, error) {
	if strings.TrimSpace(vetID) == "" {
		return nil, ErrInvalidInput
	}
	return s.api.History(ctx, vetID)
}

// Analyze pide la interpretación al backend (función premium). El gate
// local solo evita llamadas que van a rebotar; la autoridad es el backend.
func (s *Service) Analyze(ctx context.Context, profile clinical.VeterinarianProfile, consultationID string) (clinical.Consultation, error) {
	consultationID = strings.TrimSpace(consultationID)
	if consultationID == "" {
		return clinical.Consultation{}, ErrInvalidInput
	}
	if profile.MembershipTier == clinical.TierNone && profile.ConsultationsRemaining <= 0 {
		return clinical.Consultation{}, ErrPremiumRequired
	}
	if !s.acquire("analyze:" + consultationID) {
		return clinical.Consultation{}, ErrBusy
	}
	defer s.release("analyze:" + consultationID)

	return s.api.Analyze(ctx, profile.ID, consultationID)
}

// Rate guarda la calificación 1..5 de un análisis.
func (s *Service) Rate(ctx context.Context, vetID, consultationID string, rating int) (clinical.Consultation, error) {
	if strings.TrimSpace(consultationID) == "" {
		return clinical.Consultation{}, ErrInvalidInput
	}
	if rating < 1 || rating > 5 {
		return clinical.Consultation{}, ErrInvalidRating
	}
	return s.api.UpdatePayload(ctx, vetID, consultationID, clinical.ConsultationPayload{
		Rating: &rating,
	})
}

// UploadLabResult sube un resultado de laboratorio al storage legado
// (función premium de interpretación).
func (s *Service) UploadLabResult(ctx context.Context, providerToken string, profile clinical.VeterinarianProfile, consultationID, fileName string, content []byte) (string, error) {
	if s.lab == nil {
		return "", errors.New("almacenamiento de laboratorio no configurado")
	}
	if strings.TrimSpace(consultationID) == "" || len(content) == 0 {
		return "", ErrInvalidInput
	}
	if profile.MembershipTier == clinical.TierNone && profile.ConsultationsRemaining <= 0 {
		return "", ErrPremiumRequired
	}
	return s.lab.StoreLabImage(ctx, providerToken, profile.ID, consultationID, fileName, content)
}

func (s *Service) mirrorBestEffort(ctx context.Context, providerToken string, c clinical.Consultation) {
	if s.mirror == nil || strings.TrimSpace(providerToken) == "" {
		return
	}
	if err := s.mirror.MirrorConsultation(ctx, providerToken, c); err != nil {
		s.log.Debug("legacy mirror failed", map[string]any{
			"consultation_id": c.ID,
			"error":           err.Error(),
		})
	}
}
