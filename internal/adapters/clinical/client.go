package clinical

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vet-clinical-support/internal/platform/httpclient"
	port "vet-clinical-support/internal/ports/clinical"
)

var (
	ErrNotConfigured   = errors.New("clinical backend not configured")
	ErrUnauthorized    = errors.New("clinical backend unauthorized")
	ErrUpstream        = errors.New("clinical backend upstream error")
	ErrInvalidResponse = errors.New("respuesta inválida del servidor")
)

const vetIDHeader = "x-veterinarian-id"

// Config del cliente del backend clínico.
// BaseURL normalmente viene de env en quien lo instancia.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implementa port.API contra el backend REST.
// Toda la decodificación de shapes del backend vive aquí: los dominios solo
// ven los tipos del port (LoginOutcome, Consultation, etc.).
type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// NewClientWithHTTP permite inyectar el httpclient (tests con httptest).
func NewClientWithHTTP(hc *httpclient.Client) *Client {
	return &Client{http: hc}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && strings.TrimSpace(c.http.BaseURL) != ""
}

// ---------- wire shapes ----------

// profileWire es el shape del perfil tal como lo manda el backend.
type profileWire struct {
	ID               string     `json:"id"`
	Nombre           string     `json:"nombre"`
	Email            string     `json:"email"`
	Telefono         string     `json:"telefono"`
	Cedula           string     `json:"cedula"`
	Especialidad     string     `json:"especialidad"`
	AniosExperiencia int        `json:"anios_experiencia"`
	Institucion      string     `json:"institucion"`
	MembershipTier   string     `json:"membership_tier"`
	ConsultasRest    int        `json:"consultations_remaining"`
	MembershipExp    *time.Time `json:"membership_expires"`
	Verified         bool       `json:"verified"`
}

func (w profileWire) toProfile() port.VeterinarianProfile {
	tier := port.MembershipTier(strings.TrimSpace(w.MembershipTier))
	if tier == "" {
		tier = port.TierNone
	}
	rest := w.ConsultasRest
	if rest < 0 {
		rest = 0
	}
	return port.VeterinarianProfile{
		ID:                     strings.TrimSpace(w.ID),
		Name:                   strings.TrimSpace(w.Nombre),
		Email:                  strings.TrimSpace(w.Email),
		Phone:                  strings.TrimSpace(w.Telefono),
		Cedula:                 strings.TrimSpace(w.Cedula),
		Specialty:              strings.TrimSpace(w.Especialidad),
		YearsExperience:        w.AniosExperiencia,
		Institution:            strings.TrimSpace(w.Institucion),
		MembershipTier:         tier,
		ConsultationsRemaining: rest,
		MembershipExpires:      w.MembershipExp,
		Verified:               w.Verified,
	}
}

// loginWire cubre las tres variantes de respuesta de login/register/2fa.
// El campo "status" discrimina; si no viene, es un login directo.
type loginWire struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Nonce   string       `json:"nonce"`
	Profile *profileWire `json:"veterinarian"`

	// Campos del gate de cédula
	VeterinarianID     string `json:"veterinarian_id"`
	Email              string `json:"email"`
	Cedula             string `json:"cedula"`
	NombreCompleto     string `json:"nombre_completo"`
	NeedsUpload        bool   `json:"needs_upload"`
	VerificationStatus string `json:"verification_status"`
	SkipCount          int    `json:"skip_count"`
	CanSkip            bool   `json:"can_skip"`
}

func (w loginWire) toOutcome() (port.LoginOutcome, error) {
	switch strings.TrimSpace(w.Status) {
	case "pending_2fa":
		if strings.TrimSpace(w.Nonce) == "" {
			return port.LoginOutcome{}, fmt.Errorf("%w: pending_2fa sin nonce", ErrInvalidResponse)
		}
		return port.LoginOutcome{
			Kind:    port.OutcomePendingTwoFA,
			Nonce:   w.Nonce,
			Message: w.Message,
		}, nil

	case "requires_cedula_flow":
		return port.LoginOutcome{
			Kind: port.OutcomeCedulaRequired,
			Gate: &port.CedulaGate{
				VeterinarianID:     strings.TrimSpace(w.VeterinarianID),
				Email:              strings.TrimSpace(w.Email),
				Cedula:             strings.TrimSpace(w.Cedula),
				FullName:           strings.TrimSpace(w.NombreCompleto),
				NeedsUpload:        w.NeedsUpload,
				VerificationStatus: strings.TrimSpace(w.VerificationStatus),
				SkipCount:          w.SkipCount,
				CanSkip:            w.CanSkip,
				Message:            w.Message,
			},
			Message: w.Message,
		}, nil

	case "":
		if w.Profile == nil {
			return port.LoginOutcome{}, ErrInvalidResponse
		}
		p := w.Profile.toProfile()
		if p.ID == "" {
			return port.LoginOutcome{}, fmt.Errorf("%w: perfil sin id", ErrInvalidResponse)
		}
		return port.LoginOutcome{
			Kind:    port.OutcomeAuthenticated,
			Profile: &p,
			Message: w.Message,
		}, nil

	default:
		return port.LoginOutcome{}, fmt.Errorf("%w: status desconocido %q", ErrInvalidResponse, w.Status)
	}
}

// wrapErr normaliza errores del httpclient a la taxonomía del port:
// detail del backend => verbatim; resto => upstream genérico.
func wrapErr(err error) error {
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		if d := he.Detail(); d != "" {
			return fmt.Errorf("%w: %s", ErrUpstream, d)
		}
		if he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// ---------- AuthAPI ----------

func (c *Client) Register(ctx context.Context, in port.RegisterInput) (port.LoginOutcome, error) {
	if !c.IsConfigured() {
		return port.LoginOutcome{}, ErrNotConfigured
	}
	body := map[string]any{
		"nombre":            in.Name,
		"email":             in.Email,
		"password":          in.Password,
		"telefono":          in.Phone,
		"cedula":            in.Cedula,
		"especialidad":      in.Specialty,
		"anios_experiencia": in.YearsExperience,
		"institucion":       in.Institution,
	}
	var w loginWire
	if err := c.http.DoJSON(ctx, http.MethodPost, "/api/auth/register", nil, body, &w); err != nil {
		return port.LoginOutcome{}, wrapErr(err)
	}
	return w.toOutcome()
}

func (c *Client) Login(ctx context.Context, creds port.Credentials) (port.LoginOutcome, error) {
	if !c.IsConfigured() {
		return port.LoginOutcome{}, ErrNotConfigured
	}
	body := map[string]string{
		"email":    strings.TrimSpace(creds.Email),
		"password": creds.Password,
	}
	var w loginWire
	if err := c.http.DoJSON(ctx, http.MethodPost, "/api/auth/login", nil, body, &w); err != nil {
		return port.LoginOutcome{}, wrapErr(err)
	}
	return w.toOutcome()
}

func (c *Client) VerifyTwoFactor(ctx context.Context, nonce, code string) (port.LoginOutcome, error) {
	if !c.IsConfigured() {
		return port.LoginOutcome{}, ErrNotConfigured
	}
	body := map[string]string{
		"nonce": strings.TrimSpace(nonce),
		"code":  strings.TrimSpace(code),
	}
	var w loginWire
	if err := c.http.DoJSON(ctx, http.MethodPost, "/api/auth/verify-2fa", nil, body, &w); err != nil {
		return port.LoginOutcome{}, wrapErr(err)
	}
	return w.toOutcome()
}

func (c *Client) FetchProfile(ctx context.Context, vetID string) (port.VeterinarianProfile, error) {
	if !c.IsConfigured() {
		return port.VeterinarianProfile{}, ErrNotConfigured
	}
	vetID = strings.TrimSpace(vetID)
	if vetID == "" {
		return port.VeterinarianProfile{}, ErrUnauthorized
	}
	var w struct {
		Veterinarian *profileWire `json:"veterinarian"`
	}
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/auth/profile",
		map[string]string{vetIDHeader: vetID}, nil, &w)
	if err != nil {
		return port.VeterinarianProfile{}, wrapErr(err)
	}
	if w.Veterinarian == nil {
		return port.VeterinarianProfile{}, ErrInvalidResponse
	}
	return w.Veterinarian.toProfile(), nil
}

// ---------- CedulaAPI ----------

func (c *Client) UploadDocument(ctx context.Context, vetID string, doc port.Document) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	vetID = strings.TrimSpace(vetID)
	if vetID == "" || len(doc.Content) == 0 {
		return fmt.Errorf("%w: upload sin veterinario o sin archivo", ErrUpstream)
	}
	file := &httpclient.FilePart{
		FieldName: "document",
		FileName:  doc.FileName,
		Content:   doc.Content,
	}
	err := c.http.DoMultipart(ctx, "/api/cedula/upload",
		map[string]string{vetIDHeader: vetID},
		map[string]string{"veterinarian_id": vetID},
		file, nil)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (c *Client) VerifyLicense(ctx context.Context, vetID, cedula, fullName string) (port.VerifyResult, error) {
	if !c.IsConfigured() {
		return port.VerifyResult{}, ErrNotConfigured
	}
	body := map[string]string{
		"veterinarian_id": strings.TrimSpace(vetID),
		"cedula":          strings.TrimSpace(cedula),
		"nombre_completo": strings.TrimSpace(fullName),
	}
	var w struct {
		VerificationStatus string `json:"verification_status"`
		Message            string `json:"message"`
	}
	err := c.http.DoJSON(ctx, http.MethodPost, "/api/cedula/verify",
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, body, &w)
	if err != nil {
		return port.VerifyResult{}, wrapErr(err)
	}
	if strings.TrimSpace(w.VerificationStatus) == "" {
		return port.VerifyResult{}, ErrInvalidResponse
	}
	return port.VerifyResult{
		Status:  strings.TrimSpace(w.VerificationStatus),
		Message: w.Message,
	}, nil
}

func (c *Client) SkipVerification(ctx context.Context, vetID string) (port.SkipResult, error) {
	if !c.IsConfigured() {
		return port.SkipResult{}, ErrNotConfigured
	}
	body := map[string]string{
		"veterinarian_id": strings.TrimSpace(vetID),
	}
	var w struct {
		SkipCount int    `json:"skip_count"`
		CanSkip   bool   `json:"can_skip"`
		Message   string `json:"message"`
	}
	err := c.http.DoJSON(ctx, http.MethodPost, "/api/cedula/skip",
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, body, &w)
	if err != nil {
		return port.SkipResult{}, wrapErr(err)
	}
	return port.SkipResult{
		SkipCount: w.SkipCount,
		CanSkip:   w.CanSkip,
		Message:   w.Message,
	}, nil
}

// ---------- ConsultationsAPI ----------

// consultationWire shape del backend para consultas.
type consultationWire struct {
	ID              string         `json:"id"`
	VeterinarianID  string         `json:"veterinarian_id"`
	Category        string         `json:"category"`
	FormData        map[string]any `json:"form_data"`
	DetallePaciente string         `json:"detalle_paciente"`
	Status          string         `json:"status"`
	Analysis        *string        `json:"analysis"`
	Rating          *int           `json:"rating"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (w consultationWire) toConsultation() port.Consultation {
	st := port.ConsultationStatus(strings.TrimSpace(w.Status))
	if st == "" {
		st = port.ConsultationDraft
	}
	return port.Consultation{
		ID:              w.ID,
		VeterinarianID:  w.VeterinarianID,
		Category:        w.Category,
		FormData:        w.FormData,
		DetallePaciente: w.DetallePaciente,
		Status:          st,
		Analysis:        w.Analysis,
		Rating:          w.Rating,
		CreatedAt:       w.CreatedAt,
	}
}

func (c *Client) CreateConsultation(ctx context.Context, vetID string, in port.ConsultationCreate) (port.Consultation, error) {
	if !c.IsConfigured() {
		return port.Consultation{}, ErrNotConfigured
	}
	body := map[string]any{
		"category":         in.Category,
		"form_data":        in.FormData,
		"detalle_paciente": in.DetallePaciente,
	}
	var w consultationWire
	err := c.http.DoJSON(ctx, http.MethodPost, "/api/consultations",
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, body, &w)
	if err != nil {
		return port.Consultation{}, wrapErr(err)
	}
	if strings.TrimSpace(w.ID) == "" {
		return port.Consultation{}, ErrInvalidResponse
	}
	return w.toConsultation(), nil
}

func (c *Client) UpdatePayload(ctx context.Context, vetID, consultationID string, in port.ConsultationPayload) (port.Consultation, error) {
	if !c.IsConfigured() {
		return port.Consultation{}, ErrNotConfigured
	}
	body := map[string]any{}
	if in.FormData != nil {
		body["form_data"] = in.FormData
	}
	if in.DetallePaciente != nil {
		body["detalle_paciente"] = *in.DetallePaciente
	}
	if in.Status != nil {
		body["status"] = string(*in.Status)
	}
	if in.Rating != nil {
		body["rating"] = *in.Rating
	}
	var w consultationWire
	err := c.http.DoJSON(ctx, http.MethodPut, "/api/consultations/"+consultationID+"/payload",
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, body, &w)
	if err != nil {
		return port.Consultation{}, wrapErr(err)
	}
	return w.toConsultation(), nil
}

func (c *Client) GetConsultation(ctx context.Context, vetID, consultationID string) (port.Consultation, error) {
	if !c.IsConfigured() {
		return port.Consultation{}, ErrNotConfigured
	}
	var w consultationWire
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/consultation/"+consultationID,
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, nil, &w)
	if err != nil {
		return port.Consultation{}, wrapErr(err)
	}
	return w.toConsultation(), nil
}

func (c *Client) History(ctx context.Context, vetID string) ([]port.Consultation, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	vetID = strings.TrimSpace(vetID)
	var ws []consultationWire
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/consultations/"+vetID+"/history",
		map[string]string{vetIDHeader: vetID}, nil, &ws)
	if err != nil {
		return nil, wrapErr(err)
	}
	out := make([]port.Consultation, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toConsultation())
	}
	return out, nil
}

func (c *Client) Analyze(ctx context.Context, vetID, consultationID string) (port.Consultation, error) {
	if !c.IsConfigured() {
		return port.Consultation{}, ErrNotConfigured
	}
	var w consultationWire
	err := c.http.DoJSON(ctx, http.MethodPost, "/api/consultations/"+consultationID+"/analyze",
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, map[string]any{}, &w)
	if err != nil {
		return port.Consultation{}, wrapErr(err)
	}
	return w.toConsultation(), nil
}

// ---------- CatalogAPI ----------

func (c *Client) AnimalCategories(ctx context.Context) ([]port.AnimalCategory, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	var ws []struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, "/api/animal-categories", nil, nil, &ws); err != nil {
		return nil, wrapErr(err)
	}
	out := make([]port.AnimalCategory, 0, len(ws))
	for _, w := range ws {
		out = append(out, port.AnimalCategory{Key: w.Key, Label: w.Label})
	}
	return out, nil
}

func (c *Client) MembershipPackages(ctx context.Context) ([]port.MembershipPackage, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	var ws []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Tier          string `json:"tier"`
		Consultations int    `json:"consultations"`
		PriceMXN      int    `json:"price_mxn"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, "/api/membership/packages", nil, nil, &ws); err != nil {
		return nil, wrapErr(err)
	}
	out := make([]port.MembershipPackage, 0, len(ws))
	for _, w := range ws {
		out = append(out, port.MembershipPackage{
			ID:            w.ID,
			Name:          w.Name,
			Tier:          port.MembershipTier(w.Tier),
			Consultations: w.Consultations,
			PriceMXN:      w.PriceMXN,
		})
	}
	return out, nil
}

// ---------- PaymentsAPI ----------

func (c *Client) CreateMembershipCheckout(ctx context.Context, vetID, packageID string) (port.CheckoutSession, error) {
	return c.createCheckout(ctx, "/api/payments/checkout/session", vetID, packageID)
}

func (c *Client) CreateConsultationsCheckout(ctx context.Context, vetID, packID string) (port.CheckoutSession, error) {
	return c.createCheckout(ctx, "/api/payments/consultations/checkout/session", vetID, packID)
}

func (c *Client) createCheckout(ctx context.Context, path, vetID, packageID string) (port.CheckoutSession, error) {
	if !c.IsConfigured() {
		return port.CheckoutSession{}, ErrNotConfigured
	}
	body := map[string]string{
		"package_id": strings.TrimSpace(packageID),
	}
	var w struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	err := c.http.DoJSON(ctx, http.MethodPost, path,
		map[string]string{vetIDHeader: strings.TrimSpace(vetID)}, body, &w)
	if err != nil {
		return port.CheckoutSession{}, wrapErr(err)
	}
	if strings.TrimSpace(w.SessionID) == "" {
		return port.CheckoutSession{}, ErrInvalidResponse
	}
	return port.CheckoutSession{SessionID: w.SessionID, URL: w.URL}, nil
}

func (c *Client) CheckoutStatus(ctx context.Context, sessionID string) (port.CheckoutStatus, error) {
	if !c.IsConfigured() {
		return port.CheckoutStatus{}, ErrNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	var w struct {
		PaymentStatus string       `json:"payment_status"`
		Veterinarian  *profileWire `json:"veterinarian"`
	}
	err := c.http.DoJSON(ctx, http.MethodGet, "/api/payments/checkout/status/"+sessionID, nil, nil, &w)
	if err != nil {
		return port.CheckoutStatus{}, wrapErr(err)
	}
	out := port.CheckoutStatus{PaymentStatus: strings.TrimSpace(w.PaymentStatus)}
	if w.Veterinarian != nil {
		p := w.Veterinarian.toProfile()
		out.Profile = &p
	}
	return out, nil
}
