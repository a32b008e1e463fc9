package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("session not found")
)

// ProfileAPI es lo único que el store necesita del backend clínico.
type ProfileAPI interface {
	FetchProfile(ctx context.Context, vetID string) (clinical.VeterinarianProfile, error)
}

// ProviderUser es el usuario mínimo del proveedor BaaS.
type ProviderUser struct {
	ID    string
	Email string
	Phone string
}

// Provider es la sesión externa (Supabase). Puede ser nil: el path legado
// es opcional y el store funciona sin él.
type Provider interface {
	CurrentUser(ctx context.Context, accessToken string) (ProviderUser, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Service es la única fuente de verdad de "quién está logueado".
type Service struct {
	repo     Repository
	api      ProfileAPI
	provider Provider
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, api ProfileAPI, provider Provider, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		repo:     repo,
		api:      api,
		provider: provider,
		log:      log,
		now:      time.Now,
	}
}

// ensure devuelve el record de la sesión, creándolo si no existe todavía.
func (s *Service) ensure(ctx context.Context, sessionID string) (Record, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.repo.Get(ctx, sessionID)
	if err == nil {
		return rec, nil
	}
	now := s.now()
	rec = Record{
		ID:        sessionID,
		Theme:     "light",
		Loading:   true, // pendiente de Hydrate
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Login reemplaza el perfil completo y lo persiste. Sin validación:
// confía en el caller (el perfil siempre viene decodificado del backend).
func (s *Service) Login(ctx context.Context, sessionID string, profile clinical.VeterinarianProfile) error {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return err
	}
	p := profile
	rec.Profile = &p
	rec.Loading = false
	rec.UpdatedAt = s.now()
	return s.repo.Put(ctx, rec)
}

// Logout dispara el sign-out externo (fire-and-forget) y limpia el perfil
// y el token persistidos. Un fallo del proveedor no bloquea el logout local.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.provider != nil && rec.ProviderToken != "" {
		if err := s.provider.SignOut(ctx, rec.ProviderToken); err != nil {
			s.log.Warn("provider sign-out failed", map[string]any{"error": err.Error()})
		}
	}
	rec.Profile = nil
	rec.ProviderToken = ""
	rec.UpdatedAt = s.now()
	return s.repo.Put(ctx, rec)
}

// RefreshProfile trae el perfil más reciente del backend. Best-effort:
// si falla, deja el perfil existente intacto y traga el error (no debe
// interrumpir la navegación).
func (s *Service) RefreshProfile(ctx context.Context, sessionID string) {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return
	}
	if rec.Profile == nil || strings.TrimSpace(rec.Profile.ID) == "" {
		return
	}
	fresh, err := s.api.FetchProfile(ctx, rec.Profile.ID)
	if err != nil {
		s.log.Debug("profile refresh failed", map[string]any{
			"vet_id": rec.Profile.ID,
			"error":  err.Error(),
		})
		return
	}
	rec.Profile = &fresh
	rec.UpdatedAt = s.now()
	if err := s.repo.Put(ctx, rec); err != nil {
		s.log.Debug("profile refresh persist failed", map[string]any{"error": err.Error()})
	}
}

// Hydrate es el arranque: adopta el record persistido (descartando la
// identidad de desarrollo reservada) y, si hay sesión del proveedor,
// sintetiza un perfil mínimo sin pisar uno más rico ya presente.
func (s *Service) Hydrate(ctx context.Context, sessionID, providerToken string) (Snapshot, error) {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	rec.Loading = true

	if rec.Profile != nil && isDevIdentity(*rec.Profile) {
		rec.Profile = nil
	}

	providerToken = strings.TrimSpace(providerToken)
	if providerToken != "" && s.provider != nil {
		u, err := s.provider.CurrentUser(ctx, providerToken)
		if err != nil {
			// Sesión del proveedor inválida: no es fatal, seguimos sin ella.
			s.log.Debug("provider session invalid", map[string]any{"error": err.Error()})
		} else {
			rec.ProviderToken = providerToken
			if rec.Profile == nil {
				rec.Profile = &clinical.VeterinarianProfile{
					ID:             u.ID,
					Email:          u.Email,
					Phone:          u.Phone,
					MembershipTier: clinical.TierNone,
				}
			}
		}
	}

	rec.Loading = false
	rec.UpdatedAt = s.now()
	if err := s.repo.Put(ctx, rec); err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(rec), nil
}

func (s *Service) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(rec), nil
}

// Record expone el record completo (lo usan los flujos que necesitan el
// provider token o las preferencias).
func (s *Service) Record(ctx context.Context, sessionID string) (Record, error) {
	return s.ensure(ctx, sessionID)
}

func (s *Service) Prefs(ctx context.Context, sessionID string) (Prefs, error) {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return Prefs{}, err
	}
	return Prefs{Theme: rec.Theme, PrivacyAccepted: rec.PrivacyAccepted}, nil
}

func (s *Service) UpdatePrefs(ctx context.Context, sessionID string, theme *string, privacyAccepted *bool) (Prefs, error) {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return Prefs{}, err
	}
	if theme != nil {
		t := strings.TrimSpace(*theme)
		if t != "light" && t != "dark" {
			return Prefs{}, ErrInvalidInput
		}
		rec.Theme = t
	}
	if privacyAccepted != nil {
		rec.PrivacyAccepted = *privacyAccepted
	}
	rec.UpdatedAt = s.now()
	if err := s.repo.Put(ctx, rec); err != nil {
		return Prefs{}, err
	}
	return Prefs{Theme: rec.Theme, PrivacyAccepted: rec.PrivacyAccepted}, nil
}

// SetNavigation guarda la vista actual y el checkout pendiente consumidos
// de un deep link (el router de vistas es el único caller).
func (s *Service) SetNavigation(ctx context.Context, sessionID, currentView, pendingCheckout string) error {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.CurrentView = strings.TrimSpace(currentView)
	if pendingCheckout != "" {
		rec.PendingCheckout = strings.TrimSpace(pendingCheckout)
	}
	rec.UpdatedAt = s.now()
	return s.repo.Put(ctx, rec)
}

// ClearPendingCheckout se llama cuando el polling de pago llega a un estado
// terminal; el deep link ya no debe re-disparar nada.
func (s *Service) ClearPendingCheckout(ctx context.Context, sessionID string) error {
	rec, err := s.ensure(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.PendingCheckout = ""
	rec.UpdatedAt = s.now()
	return s.repo.Put(ctx, rec)
}

func snapshotOf(rec Record) Snapshot {
	return Snapshot{
		Authenticated: rec.Profile != nil && strings.TrimSpace(rec.Profile.ID) != "",
		Loading:       rec.Loading,
		Profile:       rec.Profile,
	}
}

func isDevIdentity(p clinical.VeterinarianProfile) bool {
	return p.ID == DevVeterinarianID || strings.EqualFold(p.Email, DevVeterinarianEmail)
}
