package cedula

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
)

// maxDocumentBytes limita el tamaño del documento de cédula subido.
const maxDocumentBytes = 10 << 20

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/cedula", func(cr chi.Router) {
		cr.Get("/state", stateHandler(svc))
		cr.Post("/verify", verifyHandler(svc))
		cr.Post("/skip", skipHandler(svc))
		cr.Post("/cancel", cancelHandler(svc))
	})
}

type flowStateResponse struct {
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

type resultResponse struct {
	Authenticated bool                     `json:"authenticated"`
	Message       string                   `json:"message,omitempty"`
	Error         string                   `json:"error,omitempty"`
	Veterinarian  *session.ProfileResponse `json:"veterinarian,omitempty"`
	Flow          *flowStateResponse       `json:"flow,omitempty"`
}

func toFlowStateResponse(f FlowState) *flowStateResponse {
	return &flowStateResponse{
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

func toResultResponse(res Result) resultResponse {
	out := resultResponse{
		Authenticated: res.Authenticated,
		Message:       res.Message,
	}
	if res.Profile != nil {
		pr := session.ToProfileResponse(*res.Profile)
		out.Veterinarian = &pr
	}
	if res.Flow != nil {
		out.Flow = toFlowStateResponse(*res.Flow)
	}
	return out
}

func stateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		flow, err := svc.State(r.Context(), sid)
		if err != nil {
			if errors.Is(err, ErrNoActiveFlow) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toFlowStateResponse(flow))
	}
}

// verifyHandler acepta multipart/form-data: campos cedula y nombre_completo
// más un archivo opcional "document" cuando el gate pide subirlo.
func verifyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}

		in := VerifyInput{
			Cedula:   r.FormValue("cedula"),
			FullName: r.FormValue("nombre_completo"),
		}
		if file, header, err := r.FormFile("document"); err == nil {
			defer file.Close()
			content, rerr := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
			if rerr != nil {
				http.Error(w, "could not read document", http.StatusBadRequest)
				return
			}
			in.Document = &clinical.Document{
				FileName: header.Filename,
				Content:  content,
			}
		}

		res, err := svc.Verify(r.Context(), sid, in)
		writeResult(w, res, err)
	}
}

func skipHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := middleware.GetSessionID(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusInternalServerError)
			return
		}
		res, err := svc.Skip(r.Context(), sid)
		writeResult(w, res, err)
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

func writeResult(w http.ResponseWriter, res Result, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, toResultResponse(res))
		return
	}

	out := toResultResponse(res)
	out.Error = err.Error()

	switch {
	case errors.Is(err, ErrNoActiveFlow):
		// callejón sin salida: la pantalla debe volver al login
		writeJSON(w, http.StatusNotFound, out)
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, out)
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, out)
	case errors.Is(err, ErrSkipExhausted), errors.Is(err, ErrMustVerify):
		writeJSON(w, http.StatusForbidden, out)
	case errors.Is(err, ErrStillGated), errors.Is(err, ErrVerificationRejected), errors.Is(err, ErrReloginRequired):
		writeJSON(w, http.StatusUnprocessableEntity, out)
	default:
		writeJSON(w, http.StatusBadGateway, out)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
