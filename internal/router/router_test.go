package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vet-clinical-support/internal/config"
	"vet-clinical-support/internal/ports/clinical"
	"vet-clinical-support/internal/router"
)

// -------------------------
// Backend clínico de mentira, con estado
// -------------------------

type stubBackend struct {
	gated         bool
	skipCount     int
	profile       clinical.VeterinarianProfile
	checkout      []clinical.CheckoutStatus
	checkoutCalls int
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		gated: true,
		profile: clinical.VeterinarianProfile{
			ID:             "vet-1",
			Name:           "Dra. Rivas",
			Email:          "rivas@clinic.mx",
			MembershipTier: clinical.TierBasic,
			Verified:       true,
		},
	}
}

func (s *stubBackend) outcome() clinical.LoginOutcome {
	if s.gated {
		return clinical.LoginOutcome{
			Kind: clinical.OutcomeCedulaRequired,
			Gate: &clinical.CedulaGate{
				VeterinarianID: "vet-1",
				Cedula:         "12345678",
				FullName:       "Dra. Rivas",
				SkipCount:      s.skipCount,
				CanSkip:        true,
			},
		}
	}
	p := s.profile
	return clinical.LoginOutcome{Kind: clinical.OutcomeAuthenticated, Profile: &p}
}

func (s *stubBackend) Login(ctx context.Context, creds clinical.Credentials) (clinical.LoginOutcome, error) {
	return s.outcome(), nil
}

func (s *stubBackend) Register(ctx context.Context, in clinical.RegisterInput) (clinical.LoginOutcome, error) {
	return s.outcome(), nil
}

func (s *stubBackend) VerifyTwoFactor(ctx context.Context, nonce, code string) (clinical.LoginOutcome, error) {
	return s.outcome(), nil
}

func (s *stubBackend) FetchProfile(ctx context.Context, vetID string) (clinical.VeterinarianProfile, error) {
	return s.profile, nil
}

func (s *stubBackend) UploadDocument(ctx context.Context, vetID string, doc clinical.Document) error {
	return nil
}

func (s *stubBackend) VerifyLicense(ctx context.Context, vetID, cedula, fullName string) (clinical.VerifyResult, error) {
	s.gated = false
	return clinical.VerifyResult{Status: clinical.VerificationVerified}, nil
}

func (s *stubBackend) SkipVerification(ctx context.Context, vetID string) (clinical.SkipResult, error) {
	s.skipCount++
	s.gated = false
	return clinical.SkipResult{SkipCount: s.skipCount, CanSkip: true}, nil
}

func (s *stubBackend) CreateConsultation(ctx context.Context, vetID string, in clinical.ConsultationCreate) (clinical.Consultation, error) {
	return clinical.Consultation{
		ID:              "c-1",
		VeterinarianID:  vetID,
		Category:        in.Category,
		FormData:        in.FormData,
		DetallePaciente: in.DetallePaciente,
		Status:          clinical.ConsultationDraft,
	}, nil
}

func (s *stubBackend) UpdatePayload(ctx context.Context, vetID, consultationID string, in clinical.ConsultationPayload) (clinical.Consultation, error) {
	c := clinical.Consultation{ID: consultationID, VeterinarianID: vetID, Status: clinical.ConsultationInProgress}
	if in.Status != nil {
		c.Status = *in.Status
	}
	return c, nil
}

func (s *stubBackend) GetConsultation(ctx context.Context, vetID, consultationID string) (clinical.Consultation, error) {
	return clinical.Consultation{ID: consultationID, VeterinarianID: vetID}, nil
}

func (s *stubBackend) History(ctx context.Context, vetID string) ([]clinical.Consultation, error) {
	return []clinical.Consultation{{ID: "c-1", VeterinarianID: vetID}}, nil
}

func (s *stubBackend) Analyze(ctx context.Context, vetID, consultationID string) (clinical.Consultation, error) {
	analysis := "todo en orden"
	return clinical.Consultation{ID: consultationID, VeterinarianID: vetID, Analysis: &analysis}, nil
}

func (s *stubBackend) AnimalCategories(ctx context.Context) ([]clinical.AnimalCategory, error) {
	return []clinical.AnimalCategory{{Key: "perro", Label: "Perro"}}, nil
}

func (s *stubBackend) MembershipPackages(ctx context.Context) ([]clinical.MembershipPackage, error) {
	return []clinical.MembershipPackage{
		{ID: "pkg-1", Name: "Premium", Tier: clinical.TierPremium, PriceMXN: 499},
	}, nil
}

func (s *stubBackend) CreateMembershipCheckout(ctx context.Context, vetID, packageID string) (clinical.CheckoutSession, error) {
	return clinical.CheckoutSession{SessionID: "cs_9", URL: "https://pay.example/cs_9"}, nil
}

func (s *stubBackend) CreateConsultationsCheckout(ctx context.Context, vetID, packID string) (clinical.CheckoutSession, error) {
	return clinical.CheckoutSession{SessionID: "cs_9", URL: "https://pay.example/cs_9"}, nil
}

func (s *stubBackend) CheckoutStatus(ctx context.Context, sessionID string) (clinical.CheckoutStatus, error) {
	i := s.checkoutCalls
	s.checkoutCalls++
	if i < len(s.checkout) {
		return s.checkout[i], nil
	}
	return clinical.CheckoutStatus{PaymentStatus: clinical.PaymentPending}, nil
}

// -------------------------
// Helpers
// -------------------------

func newTestServer(t *testing.T, backend *stubBackend) *httptest.Server {
	t.Helper()
	h, err := router.NewRouter(router.Options{
		Cfg: config.Config{Port: "0"}, // secret vacío => modo dev
		API: backend,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doReq(t *testing.T, baseURL, method, path, sessionID string, body any) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Debug-Session-ID", sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

// -------------------------
// Tests
// -------------------------

func TestHTTP_EndToEnd_CedulaGateThenSkip(t *testing.T) {
	backend := newStubBackend()
	ts := newTestServer(t, backend)
	sid := "sess-1"

	// 1) Login cae en el gate de cédula; la sesión sigue cerrada
	{
		st, body := doReq(t, ts.URL, "POST", "/auth/login", sid, map[string]any{
			"email":    "rivas@clinic.mx",
			"password": "secret",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 login, got %d body=%s", st, body)
		}
		var res struct {
			State      string `json:"state"`
			CedulaFlow *struct {
				RemainingSkips int `json:"remaining_skips"`
			} `json:"cedula_flow"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.State != "requires_cedula" || res.CedulaFlow == nil {
			t.Fatalf("expected cedula gate, got %s", body)
		}
		if res.CedulaFlow.RemainingSkips != 3 {
			t.Fatalf("expected 3 remaining skips, got %d", res.CedulaFlow.RemainingSkips)
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/session", sid, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 session, got %d", st)
		}
		if strings.Contains(string(body), `"authenticated":true`) {
			t.Fatalf("gate must not open the session: %s", body)
		}
	}

	// 2) Skip aprobado por el servidor abre la sesión vía re-login
	{
		st, body := doReq(t, ts.URL, "POST", "/cedula/skip", sid, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 skip, got %d body=%s", st, body)
		}
		if !strings.Contains(string(body), `"authenticated":true`) {
			t.Fatalf("expected authenticated after skip: %s", body)
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/session", sid, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"authenticated":true`) {
			t.Fatalf("session must be open now: %d %s", st, body)
		}
	}

	// 3) Con sesión abierta el wizard funciona
	{
		st, body := doReq(t, ts.URL, "POST", "/consultations", sid, map[string]any{
			"category":  "perro",
			"form_data": map[string]any{"raza": "mestizo"},
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 consultation, got %d body=%s", st, body)
		}
	}
}

func TestHTTP_DeepLink_UnauthenticatedGoesToLoginAndStripsParam(t *testing.T) {
	backend := newStubBackend()
	ts := newTestServer(t, backend)
	sid := "sess-anon"

	st, _ := doReq(t, ts.URL, "GET", "/view?session_id=cs_9&utm_source=mail", sid, nil)
	if st != http.StatusSeeOther {
		t.Fatalf("deep link must redirect to the clean URL, got %d", st)
	}

	// Tras el redirect, la vista resuelta es login y el parámetro ya no existe
	st, body := doReq(t, ts.URL, "GET", "/view?utm_source=mail", sid, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 view, got %d", st)
	}
	var res struct {
		View string `json:"view"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.View != "login" {
		t.Fatalf("anonymous payment return must land on login, got %s", res.View)
	}
}

func TestHTTP_PaymentReturn_PollsAndAdoptsProfile(t *testing.T) {
	backend := newStubBackend()
	backend.gated = false
	paid := backend.profile
	paid.MembershipTier = clinical.TierPremium
	backend.checkout = []clinical.CheckoutStatus{
		{PaymentStatus: clinical.PaymentPending},
		{PaymentStatus: clinical.PaymentPaid, Profile: &paid},
	}
	ts := newTestServer(t, backend)
	sid := "sess-pay"

	// Abrir sesión primero
	{
		st, _ := doReq(t, ts.URL, "POST", "/auth/login", sid, map[string]any{
			"email": "rivas@clinic.mx", "password": "secret",
		})
		if st != http.StatusOK {
			t.Fatalf("login failed: %d", st)
		}
	}

	// Retorno del pago: deep link captura el checkout pendiente
	{
		st, _ := doReq(t, ts.URL, "GET", "/view?session_id=cs_9", sid, nil)
		if st != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", st)
		}
	}

	// Confirmación: el polling llega a paid y adopta el perfil nuevo
	{
		st, body := doReq(t, ts.URL, "POST", "/membership/payment/confirm", sid, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 confirm, got %d body=%s", st, body)
		}
		var res struct {
			Outcome      string `json:"outcome"`
			Veterinarian *struct {
				MembershipTier string `json:"membership_tier"`
			} `json:"veterinarian"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.Outcome != "success" {
			t.Fatalf("expected success, got %s", body)
		}
		if res.Veterinarian == nil || res.Veterinarian.MembershipTier != "premium" {
			t.Fatalf("expected premium profile, got %s", body)
		}
	}

	// Un segundo confirm ya no tiene checkout pendiente
	{
		st, _ := doReq(t, ts.URL, "POST", "/membership/payment/confirm", sid, nil)
		if st != http.StatusNotFound {
			t.Fatalf("pending checkout must be consumed, got %d", st)
		}
	}
}

func TestHTTP_Health(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
}
