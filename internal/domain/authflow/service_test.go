package authflow

import (
	"context"
	"errors"
	"testing"

	"vet-clinical-support/internal/domain/cedula"
	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/ports/clinical"
)

// -------------------------
// Repos de prueba (in-memory)
// -------------------------

type testSessionRepo struct {
	byID map[string]session.Record
	puts int
}

func newTestSessionRepo() *testSessionRepo {
	return &testSessionRepo{byID: map[string]session.Record{}}
}

func (r *testSessionRepo) Get(ctx context.Context, id string) (session.Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (r *testSessionRepo) Put(ctx context.Context, rec session.Record) error {
	r.puts++
	r.byID[rec.ID] = rec
	return nil
}

func (r *testSessionRepo) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

type testPendingRepo struct {
	byID map[string]Pending
}

func newTestPendingRepo() *testPendingRepo {
	return &testPendingRepo{byID: map[string]Pending{}}
}

func (r *testPendingRepo) Get(ctx context.Context, sessionID string) (Pending, error) {
	p, ok := r.byID[sessionID]
	if !ok {
		return Pending{}, errors.New("pending: not found")
	}
	return p, nil
}

func (r *testPendingRepo) Put(ctx context.Context, p Pending) error {
	r.byID[p.SessionID] = p
	return nil
}

func (r *testPendingRepo) Delete(ctx context.Context, sessionID string) error {
	delete(r.byID, sessionID)
	return nil
}

type testFlowRepo struct {
	byID map[string]cedula.FlowState
}

func newTestFlowRepo() *testFlowRepo {
	return &testFlowRepo{byID: map[string]cedula.FlowState{}}
}

func (r *testFlowRepo) Get(ctx context.Context, sessionID string) (cedula.FlowState, error) {
	f, ok := r.byID[sessionID]
	if !ok {
		return cedula.FlowState{}, errors.New("flow: not found")
	}
	return f, nil
}

func (r *testFlowRepo) Put(ctx context.Context, f cedula.FlowState) error {
	r.byID[f.SessionID] = f
	return nil
}

func (r *testFlowRepo) Delete(ctx context.Context, sessionID string) error {
	delete(r.byID, sessionID)
	return nil
}

// -------------------------
// Fake del backend clínico
// -------------------------

type fakeAuthAPI struct {
	loginOutcome  clinical.LoginOutcome
	loginErr      error
	loginCalls    int
	verifyOutcome clinical.LoginOutcome
	verifyErr     error
	verifyNonce   string
}

func (f *fakeAuthAPI) Login(ctx context.Context, creds clinical.Credentials) (clinical.LoginOutcome, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return clinical.LoginOutcome{}, f.loginErr
	}
	return f.loginOutcome, nil
}

func (f *fakeAuthAPI) Register(ctx context.Context, in clinical.RegisterInput) (clinical.LoginOutcome, error) {
	return f.loginOutcome, f.loginErr
}

func (f *fakeAuthAPI) VerifyTwoFactor(ctx context.Context, nonce, code string) (clinical.LoginOutcome, error) {
	f.verifyNonce = nonce
	if f.verifyErr != nil {
		return clinical.LoginOutcome{}, f.verifyErr
	}
	return f.verifyOutcome, nil
}

func (f *fakeAuthAPI) FetchProfile(ctx context.Context, vetID string) (clinical.VeterinarianProfile, error) {
	return clinical.VeterinarianProfile{ID: vetID}, nil
}

type env struct {
	api      *fakeAuthAPI
	sessions *session.Service
	sessRepo *testSessionRepo
	pending  *testPendingRepo
	flows    *testFlowRepo
	svc      *Service
}

func newEnv(api *fakeAuthAPI) *env {
	sessRepo := newTestSessionRepo()
	sessions := session.NewService(sessRepo, api, nil, nil)
	pending := newTestPendingRepo()
	flows := newTestFlowRepo()
	return &env{
		api:      api,
		sessions: sessions,
		sessRepo: sessRepo,
		pending:  pending,
		flows:    flows,
		svc:      NewService(api, sessions, pending, flows, nil),
	}
}

func creds() clinical.Credentials {
	return clinical.Credentials{Email: "vet@clinic.mx", Password: "secret"}
}

// -------------------------
// Tests
// -------------------------

func TestSubmit_Authenticated_OpensSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind:    clinical.OutcomeAuthenticated,
		Profile: &clinical.VeterinarianProfile{ID: "vet-1", Email: "vet@clinic.mx"},
	}})

	res, err := e.svc.Submit(ctx, "s1", creds())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.State != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", res.State)
	}

	snap, _ := e.sessions.Snapshot(ctx, "s1")
	if !snap.Authenticated || snap.Profile.ID != "vet-1" {
		t.Fatalf("session not opened: %+v", snap)
	}
}

func TestSubmit_Pending2FA_DoesNotTouchSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind:  clinical.OutcomePendingTwoFA,
		Nonce: "nonce-7",
	}})

	res, err := e.svc.Submit(ctx, "s1", creds())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.State != StatePending2FA {
		t.Fatalf("expected pending_2fa, got %s", res.State)
	}
	if e.sessRepo.puts != 0 {
		t.Fatalf("pending 2FA must not mutate the session store, got %d puts", e.sessRepo.puts)
	}
	p, err := e.pending.Get(ctx, "s1")
	if err != nil || p.Nonce != "nonce-7" {
		t.Fatalf("nonce not retained: %+v err=%v", p, err)
	}
}

func TestSubmit_CedulaRequired_NeverOpensSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind: clinical.OutcomeCedulaRequired,
		Gate: &clinical.CedulaGate{
			VeterinarianID: "vet-1",
			Cedula:         "12345678",
			SkipCount:      1,
			CanSkip:        true,
		},
	}})

	res, err := e.svc.Submit(ctx, "s1", creds())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.State != StateRequiresCedula {
		t.Fatalf("expected requires_cedula, got %s", res.State)
	}
	if e.sessRepo.puts != 0 {
		t.Fatal("cedula gate must never open a session")
	}

	flow, err := e.flows.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("flow not stored: %v", err)
	}
	if flow.Source != cedula.SourceLogin || flow.Password != "secret" {
		t.Fatalf("flow must retain source and credentials: %+v", flow)
	}
	if flow.RemainingSkips() != 2 {
		t.Fatalf("expected 2 remaining skips, got %d", flow.RemainingSkips())
	}
}

func TestSubmit_GateWithoutVeterinarianIsDeadEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind: clinical.OutcomeCedulaRequired,
		Gate: &clinical.CedulaGate{},
	}})

	_, err := e.svc.Submit(ctx, "s1", creds())
	if !errors.Is(err, clinical.ErrGateWithoutVeterinarian) {
		t.Fatalf("expected ErrGateWithoutVeterinarian, got %v", err)
	}
}

func TestSubmit_BackendFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginErr: errors.New("credenciales inválidas")})

	res, err := e.svc.Submit(ctx, "s1", creds())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.State != StateIdle {
		t.Fatalf("failure must return to idle, got %s", res.State)
	}

	st, err := e.svc.Status(ctx, "s1")
	if err != nil || st.State != StateIdle {
		t.Fatalf("status after failure: %+v err=%v", st, err)
	}
}

func TestConfirmTwoFactor_RejectionKeepsPendingState(t *testing.T) {
	ctx := context.Background()
	api := &fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind:  clinical.OutcomePendingTwoFA,
		Nonce: "nonce-7",
	}}
	e := newEnv(api)

	if _, err := e.svc.Submit(ctx, "s1", creds()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	api.verifyErr = errors.New("código incorrecto")
	res, err := e.svc.ConfirmTwoFactor(ctx, "s1", "000000")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if res.State != StatePending2FA {
		t.Fatalf("rejection must keep pending_2fa, got %s", res.State)
	}
	if api.verifyNonce != "nonce-7" {
		t.Fatalf("expected original nonce, got %q", api.verifyNonce)
	}

	// El nonce sobrevive al rechazo: un segundo intento lo reutiliza.
	api.verifyErr = nil
	api.verifyOutcome = clinical.LoginOutcome{
		Kind:    clinical.OutcomeAuthenticated,
		Profile: &clinical.VeterinarianProfile{ID: "vet-1"},
	}
	res, err = e.svc.ConfirmTwoFactor(ctx, "s1", "123456")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if res.State != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", res.State)
	}
	if _, err := e.pending.Get(ctx, "s1"); err == nil {
		t.Fatal("pending must be cleared after success")
	}
}

func TestConfirmTwoFactor_WithoutPendingFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{})

	_, err := e.svc.ConfirmTwoFactor(ctx, "s1", "123456")
	if !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending, got %v", err)
	}
}

func TestStatus_ReflectsStoredState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind: clinical.OutcomeCedulaRequired,
		Gate: &clinical.CedulaGate{VeterinarianID: "vet-1"},
	}})

	if _, err := e.svc.Submit(ctx, "s1", creds()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	st, err := e.svc.Status(ctx, "s1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateRequiresCedula || st.Flow == nil {
		t.Fatalf("expected requires_cedula with flow, got %+v", st)
	}
}

func TestCancel_DiscardsPendingAndFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(&fakeAuthAPI{loginOutcome: clinical.LoginOutcome{
		Kind:  clinical.OutcomePendingTwoFA,
		Nonce: "n",
	}})

	if _, err := e.svc.Submit(ctx, "s1", creds()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.svc.Cancel(ctx, "s1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	st, _ := e.svc.Status(ctx, "s1")
	if st.State != StateIdle {
		t.Fatalf("expected idle after cancel, got %s", st.State)
	}
}
