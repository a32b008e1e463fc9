package authflow

import (
	"encoding/json"
	"errors"
	"net/http"

	"vet-clinical-support/internal/domain/cedula"
	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", registerHandler(svc))
		ar.Post("/login", loginHandler(svc))
		ar.Post("/2fa", twoFactorHandler(svc))
		ar.Get("/status", statusHandler(svc))
		ar.Post("/cancel", cancelHandler(svc))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"nombre"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Phone           string `json:"telefono"`
	Cedula          string `json:"cedula"`
	Specialty       string `json:"especialidad"`
	YearsExperience int    `json:"anios_experiencia"`
	Institution     string `json:"institucion"`
}

type twoFactorRequest struct {
	Code string `json:"code"`
}

// flowResponse es el resultado serializado de un ciclo de credenciales.
type flowResponse struct {
	State        string                   `json:"state"`
	Message      string                   `json:"message,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Veterinarian *session.ProfileResponse `json:"veterinarian,omitempty"`
	CedulaFlow   *cedulaFlowResponse      `json:"cedula_flow,omitempty"`
}

// cedulaFlowResponse nunca incluye la contraseña retenida.
type cedulaFlowResponse struct {
	Source             string `json:"source"`
	VeterinarianID     string `json:"veterinarian_id"`
	Email              string `json:"email"`
	Cedula             string `json:"cedula"`
	FullName           string `json:"nombre_completo"`
	NeedsUpload        bool   `json:"needs_upload"`
	VerificationStatus string `json:"verification_status"`
	SkipCount          int    `json:"skip_count"`
	RemainingSkips     int    `json:"remaining_skips"`
	CanSkip            bool   `json:"can_skip"`
	Message            string `json:"message,omitempty"`
}

func toFlowResponse(res Result) flowResponse {
	out := flowResponse{
		State:   string(res.State),
		Message: res.Message,
	}
	if res.Profile != nil {
		pr := session.ToProfileResponse(*res.Profile)
		out.Veterinarian = &pr
	}
	if res.Flow != nil {
		out.CedulaFlow = toCedulaFlowResponse(*res.Flow)
	}
	return out
}

func toCedulaFlowResponse(f cedula.FlowState) *cedulaFlowResponse {
	return &cedulaFlowResponse{
		Source:             string(f.Source),
		VeterinarianID:     f.VeterinarianID,
		Email:              f.Email,
		Cedula:             f.Cedula,
		FullName:           f.FullName,
		NeedsUpload:        f.NeedsUpload,
		VerificationStatus: f.VerificationStatus,
		SkipCount:          f.SkipCount,
		RemainingSkips:     f.RemainingSkips(),
		CanSkip:            f.CanSkip,
		Message:            f.Message,
	}
}

func loginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Submit(r.Context(), sid, clinical.Credentials{
			Email:    req.Email,
			Password: req.Password,
		})
		writeResult(w, res, err)
	}
}

func registerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Register(r.Context(), sid, clinical.RegisterInput{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			Phone:           req.Phone,
			Cedula:          req.Cedula,
			Specialty:       req.Specialty,
			YearsExperience: req.YearsExperience,
			Institution:     req.Institution,
		})
		writeResult(w, res, err)
	}
}

func twoFactorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		var req twoFactorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.ConfirmTwoFactor(r.Context(), sid, req.Code)
		writeResult(w, res, err)
	}
}

func statusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		res, err := svc.Status(r.Context(), sid)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toFlowResponse(res))
	}
}

func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		if err := svc.Cancel(r.Context(), sid); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeResult mapea la taxonomía: gating => 200 con estado; rechazo de
// dominio/credenciales => error inline con el estado al que se volvió.
func writeResult(w http.ResponseWriter, res Result, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, toFlowResponse(res))
		return
	}

	out := toFlowResponse(res)
	out.Error = err.Error()

	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, out)
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, out)
	case errors.Is(err, ErrNoPending):
		writeJSON(w, http.StatusConflict, out)
	default:
		// fallos del backend (credenciales, upstream, parse) se rinden
		// inline; el form conserva sus valores del lado del navegador
		writeJSON(w, http.StatusUnprocessableEntity, out)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
