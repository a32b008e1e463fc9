package consultations

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
)

// maxLabResultBytes limita el tamaño del archivo de laboratorio subido.
const maxLabResultBytes = 15 << 20

func RegisterRoutes(r chi.Router, svc *Service, sessions *session.Service) {
	h := &handler{svc: svc, sessions: sessions}
	r.Route("/consultations", func(cr chi.Router) {
		cr.Get("/categories", h.categories)
		cr.Get("/", h.history)
		cr.Post("/", h.step1)
		cr.Get("/{id}", h.get)
		cr.Put("/{id}", h.step2)
		cr.Post("/{id}/analyze", h.analyze)
		cr.Post("/{id}/rating", h.rate)
		cr.Post("/{id}/lab-results", h.uploadLabResult)
	})
}

type handler struct {
	svc      *Service
	sessions *session.Service
}

type consultationResponse struct {
	ID              string         `json:"id"`
	VeterinarianID  string         `json:"veterinarian_id"`
	Category        string         `json:"category"`
	FormData        map[string]any `json:"form_data"`
	DetallePaciente string         `json:"detalle_paciente"`
	Status          string         `json:"status"`
	Analysis        *string        `json:"analysis,omitempty"`
	Rating          *int           `json:"rating,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toConsultationResponse(c clinical.Consultation) consultationResponse {
	return consultationResponse{
		ID:              c.ID,
		VeterinarianID:  c.VeterinarianID,
		Category:        c.Category,
		FormData:        c.FormData,
		DetallePaciente: c.DetallePaciente,
		Status:          string(c.Status),
		Analysis:        c.Analysis,
		Rating:          c.Rating,
		CreatedAt:       c.CreatedAt,
	}
}

type step1Request struct {
	Category        string         `json:"category"`
	FormData        map[string]any `json:"form_data"`
	DetallePaciente string         `json:"detalle_paciente"`
}

type step2Request struct {
	FormData        map[string]any `json:"form_data"`
	DetallePaciente *string        `json:"detalle_paciente"`
	Complete        bool           `json:"complete"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

// authed resuelve la sesión y exige un perfil autenticado. Devuelve nil y
// escribe la respuesta cuando no hay sesión abierta.
func (h *handler) authed(w http.ResponseWriter, r *http.Request) *session.Record {
	sid, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusInternalServerError)
		return nil
	}
	rec, err := h.sessions.Record(r.Context(), sid)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	if rec.Profile == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sesión no autenticada"})
		return nil
	}
	return &rec
}

func (h *handler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type categoryResponse struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{Key: c.Key, Label: c.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) step1(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	var req step1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	c, err := h.svc.SubmitStep1(r.Context(), rec.Profile.ID, rec.ProviderToken, Step1Input{
		Category:        req.Category,
		FormData:        req.FormData,
		DetallePaciente: req.DetallePaciente,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConsultationResponse(c))
}

func (h *handler) step2(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	var req step2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	c, err := h.svc.SubmitStep2(r.Context(), rec.Profile.ID, rec.ProviderToken, chi.URLParam(r, "id"), Step2Input{
		FormData:        req.FormData,
		DetallePaciente: req.DetallePaciente,
		Complete:        req.Complete,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	c, err := h.svc.Get(r.Context(), rec.Profile.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	list, err := h.svc.History(r.Context(), rec.Profile.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]consultationResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toConsultationResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	c, err := h.svc.Analyze(r.Context(), *rec.Profile, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

func (h *handler) rate(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c, err := h.svc.Rate(r.Context(), rec.Profile.ID, chi.URLParam(r, "id"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

// uploadLabResult acepta multipart/form-data con un archivo "file".
func (h *handler) uploadLabResult(w http.ResponseWriter, r *http.Request) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	if err := r.ParseMultipartForm(maxLabResultBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxLabResultBytes))
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}

	path, err := h.svc.UploadLabResult(r.Context(), rec.ProviderToken, *rec.Profile, chi.URLParam(r, "id"), header.Filename, content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func writeError(w http.ResponseWriter, err error) {
	msg := map[string]string{"error": err.Error()}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, msg)
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, msg)
	case errors.Is(err, ErrPremiumRequired):
		writeJSON(w, http.StatusPaymentRequired, msg)
	default:
		writeJSON(w, http.StatusBadGateway, msg)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
