package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, sessions *session.Service) {
	h := &handler{svc: svc, sessions: sessions}
	r.Route("/membership", func(mr chi.Router) {
		mr.Get("/packages", h.packages)
		mr.Post("/checkout", h.membershipCheckout)
		mr.Post("/consultations-checkout", h.consultationsCheckout)
		mr.Post("/payment/confirm", h.confirmPayment)
	})
}

type handler struct {
	svc      *Service
	sessions *session.Service
}

type checkoutRequest struct {
	PackageID string `json:"package_id"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type pollResponse struct {
	Outcome      string                   `json:"outcome"`
	Message      string                   `json:"message,omitempty"`
	Veterinarian *session.ProfileResponse `json:"veterinarian,omitempty"`
}

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

func (h *handler) packages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.svc.Packages(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	type packageResponse struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Tier          string `json:"tier"`
		Consultations int    `json:"consultations"`
		PriceMXN      int    `json:"price_mxn"`
	}
	out := make([]packageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, packageResponse{
			ID:            p.ID,
			Name:          p.Name,
			Tier:          string(p.Tier),
			Consultations: p.Consultations,
			PriceMXN:      p.PriceMXN,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) membershipCheckout(w http.ResponseWriter, r *http.Request) {
	h.startCheckout(w, r, h.svc.StartMembershipCheckout)
}

func (h *handler) consultationsCheckout(w http.ResponseWriter, r *http.Request) {
	h.startCheckout(w, r, h.svc.StartConsultationsCheckout)
}

func (h *handler) startCheckout(
	w http.ResponseWriter,
	r *http.Request,
	start func(ctx context.Context, vetID, packageID string) (clinical.CheckoutSession, error),
) {
	rec := h.authed(w, r)
	if rec == nil {
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cs, err := start(r.Context(), rec.Profile.ID, req.PackageID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{SessionID: cs.SessionID, URL: cs.URL})
}

// confirmPayment arranca el polling del checkout pendiente capturado en el
// retorno del proveedor de pagos. Siempre limpia el pending al terminar,
// cualquiera sea el desenlace.
func (h *handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusInternalServerError)
		return
	}
	rec, err := h.sessions.Record(r.Context(), sid)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rec.PendingCheckout == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no hay un pago pendiente de confirmar"})
		return
	}

	res, err := h.svc.AwaitPayment(r.Context(), sid, rec.PendingCheckout)
	if cerr := h.sessions.ClearPendingCheckout(r.Context(), sid); cerr != nil {
		h.svc.log.Warn("clear pending checkout failed", map[string]any{"error": cerr.Error()})
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	out := pollResponse{Outcome: string(res.Outcome), Message: res.Message}
	if res.Profile != nil {
		pr := session.ToProfileResponse(*res.Profile)
		out.Veterinarian = &pr
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
