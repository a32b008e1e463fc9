package session

import (
	"encoding/json"
	"net/http"
	"time"

	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/session", func(sr chi.Router) {
		sr.Get("/", snapshotHandler(svc))
		sr.Post("/hydrate", hydrateHandler(svc))
		sr.Post("/refresh", refreshHandler(svc))
		sr.Post("/logout", logoutHandler(svc))
		sr.Get("/prefs", getPrefsHandler(svc))
		sr.Put("/prefs", updatePrefsHandler(svc))
	})
}

// ProfileResponse es el perfil serializado hacia el navegador. Lo exporta
// este módulo porque el store es el dueño del perfil; otros handlers lo
// reutilizan para no divergir en el shape.
type ProfileResponse struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"nombre"`
	Email                  string     `json:"email"`
	Phone                  string     `json:"telefono"`
	Cedula                 string     `json:"cedula"`
	Specialty              string     `json:"especialidad"`
	YearsExperience        int        `json:"anios_experiencia"`
	Institution            string     `json:"institucion"`
	MembershipTier         string     `json:"membership_tier"`
	ConsultationsRemaining int        `json:"consultations_remaining"`
	MembershipExpires      *time.Time `json:"membership_expires,omitempty"`
	Verified               bool       `json:"verified"`
}

func ToProfileResponse(p clinical.VeterinarianProfile) ProfileResponse {
	return ProfileResponse{
		ID:                     p.ID,
		Name:                   p.Name,
		Email:                  p.Email,
		Phone:                  p.Phone,
		Cedula:                 p.Cedula,
		Specialty:              p.Specialty,
		YearsExperience:        p.YearsExperience,
		Institution:            p.Institution,
		MembershipTier:         string(p.MembershipTier),
		ConsultationsRemaining: p.ConsultationsRemaining,
		MembershipExpires:      p.MembershipExpires,
		Verified:               p.Verified,
	}
}

type snapshotResponse struct {
	Authenticated bool             `json:"authenticated"`
	Loading       bool             `json:"loading"`
	Veterinarian  *ProfileResponse `json:"veterinarian,omitempty"`
}

func toSnapshotResponse(snap Snapshot) snapshotResponse {
	out := snapshotResponse{
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
	}
	if snap.Profile != nil {
		pr := ToProfileResponse(*snap.Profile)
		out.Veterinarian = &pr
	}
	return out
}

func snapshotHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		snap, err := svc.Snapshot(r.Context(), sid)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
	}
}

func hydrateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}

		// body opcional: {"provider_token": "..."} si el navegador trae
		// una sesión del proveedor BaaS
		var req struct {
			ProviderToken string `json:"provider_token"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		snap, err := svc.Hydrate(r.Context(), sid, req.ProviderToken)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
	}
}

func refreshHandler(svc *Service) http.HandlerFunc {
	// Best-effort: siempre 204, el refresh nunca interrumpe la UI.
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		svc.RefreshProfile(r.Context(), sid)
		w.WriteHeader(http.StatusNoContent)
	}
}

func logoutHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		if err := svc.Logout(r.Context(), sid); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type prefsResponse struct {
	Theme           string `json:"theme"`
	PrivacyAccepted bool   `json:"privacy_accepted"`
}

func getPrefsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		p, err := svc.Prefs(r.Context(), sid)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, prefsResponse{Theme: p.Theme, PrivacyAccepted: p.PrivacyAccepted})
	}
}

func updatePrefsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}

		// Punteros para PATCH real: nil = no tocar.
		var req struct {
			Theme           *string `json:"theme"`
			PrivacyAccepted *bool   `json:"privacy_accepted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.UpdatePrefs(r.Context(), sid, req.Theme, req.PrivacyAccepted)
		if err != nil {
			if err == ErrInvalidInput {
				http.Error(w, "theme must be light or dark", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, prefsResponse{Theme: p.Theme, PrivacyAccepted: p.PrivacyAccepted})
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
