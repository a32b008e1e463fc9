package views

import (
	"context"
	"encoding/json"
	"net/http"

	"vet-clinical-support/internal/adapters/weather"
	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// WeatherAPI es la fuente de clima del dashboard. Decorativo: un error
// jamás bloquea la navegación.
type WeatherAPI interface {
	FetchCurrent(ctx context.Context, city string) (weather.Current, error)
	IsConfigured() bool
}

type Handler struct {
	sessions *session.Service
	weather  WeatherAPI
	log      logger.Logger
}

func NewHandler(sessions *session.Service, w WeatherAPI, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Handler{sessions: sessions, weather: w, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/view", h.resolveView)
	r.Post("/view", h.navigate)
	r.Get("/view/palette", h.palette)
}

type weatherResponse struct {
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition"`
	City         string  `json:"city"`
}

type viewResponse struct {
	View          string           `json:"view"`
	Authenticated bool             `json:"authenticated"`
	Loading       bool             `json:"loading"`
	Weather       *weatherResponse `json:"weather,omitempty"`
}

type navigateRequest struct {
	View string `json:"view"`
}

// resolveView resuelve la vista actual. Los deep links (?session_id=,
// ?view=) se consumen una sola vez: se persiste la navegación resultante y
// se redirige 303 a la URL limpia para que un refresh no los re-dispare.
func (h *Handler) resolveView(w http.ResponseWriter, r *http.Request) {
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
	snap := session.Snapshot{
		Authenticated: rec.Profile != nil,
		Loading:       rec.Loading,
		Profile:       rec.Profile,
	}

	current := View("")
	if rec.CurrentView != "" {
		if v, ok := Parse(rec.CurrentView); ok {
			current = v
		}
	}
	q := r.URL.Query()
	res := Resolve(snap, current, q)

	if err := h.sessions.SetNavigation(r.Context(), sid, string(res.View), res.PendingCheckout); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if len(res.Consumed) > 0 {
		clean := *r.URL
		clean.RawQuery = Strip(q, res.Consumed).Encode()
		http.Redirect(w, r, clean.String(), http.StatusSeeOther)
		return
	}

	out := viewResponse{
		View:          string(res.View),
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
	}
	if res.View == ViewDashboard {
		out.Weather = h.fetchWeather(r.Context())
	}
	writeJSON(w, http.StatusOK, out)
}

// navigate es la navegación explícita desde la UI (clicks, paleta).
func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusInternalServerError)
		return
	}
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	target, valid := Parse(req.View)
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vista desconocida"})
		return
	}

	snap, err := h.sessions.Snapshot(r.Context(), sid)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// La regla de auth manda también en navegación explícita.
	if !snap.Authenticated && !snap.Loading && target.RequiresAuth() {
		target = ViewLanding
	}

	if err := h.sessions.SetNavigation(r.Context(), sid, string(target), ""); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := viewResponse{
		View:          string(target),
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
	}
	if target == ViewDashboard {
		out.Weather = h.fetchWeather(r.Context())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) palette(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusInternalServerError)
		return
	}
	snap, err := h.sessions.Snapshot(r.Context(), sid)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type shortcutResponse struct {
		Key    string `json:"key"`
		Label  string `json:"label"`
		Target string `json:"target"`
	}
	shortcuts := Shortcuts(snap)
	out := make([]shortcutResponse, 0, len(shortcuts))
	for _, sc := range shortcuts {
		out = append(out, shortcutResponse{Key: sc.Key, Label: sc.Label, Target: string(sc.Target)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fetchWeather(ctx context.Context) *weatherResponse {
	if h.weather == nil || !h.weather.IsConfigured() {
		return nil
	}
	cur, err := h.weather.FetchCurrent(ctx, "")
	if err != nil {
		h.log.Debug("weather fetch failed", map[string]any{"error": err.Error()})
		return nil
	}
	return &weatherResponse{
		TemperatureC: cur.TemperatureC,
		Condition:    cur.Condition,
		City:         cur.City,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
