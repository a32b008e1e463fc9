package consultations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"vet-clinical-support/internal/ports/clinical"
)

// -------------------------
// Fake del backend clínico
// -------------------------

type fakeConsultAPI struct {
	byID   map[string]clinical.Consultation
	nextID int

	analyzeErr error
}

func newFakeConsultAPI() *fakeConsultAPI {
	return &fakeConsultAPI{byID: map[string]clinical.Consultation{}}
}

func (f *fakeConsultAPI) CreateConsultation(ctx context.Context, vetID string, in clinical.ConsultationCreate) (clinical.Consultation, error) {
	f.nextID++
	c := clinical.Consultation{
		ID:              fmt.Sprintf("c-%d", f.nextID),
		VeterinarianID:  vetID,
		Category:        in.Category,
		FormData:        in.FormData,
		DetallePaciente: in.DetallePaciente,
		Status:          clinical.ConsultationDraft,
	}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeConsultAPI) UpdatePayload(ctx context.Context, vetID, consultationID string, in clinical.ConsultationPayload) (clinical.Consultation, error) {
	c, ok := f.byID[consultationID]
	if !ok {
		return clinical.Consultation{}, errors.New("not found")
	}
	if in.FormData != nil {
		c.FormData = in.FormData
	}
	if in.DetallePaciente != nil {
		c.DetallePaciente = *in.DetallePaciente
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.Rating != nil {
		c.Rating = in.Rating
	}
	f.byID[consultationID] = c
	return c, nil
}

func (f *fakeConsultAPI) GetConsultation(ctx context.Context, vetID, consultationID string) (clinical.Consultation, error) {
	c, ok := f.byID[consultationID]
	if !ok {
		return clinical.Consultation{}, errors.New("not found")
	}
	return c, nil
}

func (f *fakeConsultAPI) History(ctx context.Context, vetID string) ([]clinical.Consultation, error) {
	out := []clinical.Consultation{}
	for _, c := range f.byID {
		if c.VeterinarianID == vetID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConsultAPI) Analyze(ctx context.Context, vetID, consultationID string) (clinical.Consultation, error) {
	if f.analyzeErr != nil {
		return clinical.Consultation{}, f.analyzeErr
	}
	c, ok := f.byID[consultationID]
	if !ok {
		return clinical.Consultation{}, errors.New("not found")
	}
	analysis := "interpretación clínica"
	c.Analysis = &analysis
	f.byID[consultationID] = c
	return c, nil
}

func (f *fakeConsultAPI) AnimalCategories(ctx context.Context) ([]clinical.AnimalCategory, error) {
	return []clinical.AnimalCategory{
		{Key: "perro", Label: "Perro"},
		{Key: "gato", Label: "Gato"},
		{Key: "exotico", Label: "Exótico"},
	}, nil
}

type fakeMirror struct {
	calls int
	err   error
}

func (m *fakeMirror) MirrorConsultation(ctx context.Context, accessToken string, c clinical.Consultation) error {
	m.calls++
	return m.err
}

type fakeLab struct {
	path string
	err  error
}

func (l *fakeLab) StoreLabImage(ctx context.Context, accessToken, vetID, consultationID, fileName string, content []byte) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.path, nil
}

func premiumProfile() clinical.VeterinarianProfile {
	return clinical.VeterinarianProfile{ID: "vet-1", MembershipTier: clinical.TierPremium}
}

// -------------------------
// Tests
// -------------------------

func TestWizard_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeConsultAPI()
	svc := NewService(api, nil, nil, nil)

	created, err := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{
		Category:        "perro",
		FormData:        map[string]any{"raza": "mestizo"},
		DetallePaciente: "cojera en pata trasera",
	})
	if err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if created.Status != clinical.ConsultationDraft {
		t.Fatalf("step 1 must create a draft, got %s", created.Status)
	}

	detail := "cojera intermitente de 3 días"
	updated, err := svc.SubmitStep2(ctx, "vet-1", "", created.ID, Step2Input{
		FormData:        map[string]any{"raza": "mestizo", "peso_kg": 14},
		DetallePaciente: &detail,
		Complete:        true,
	})
	if err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if updated.Status != clinical.ConsultationCompleted {
		t.Fatalf("complete must close the consultation, got %s", updated.Status)
	}
	if updated.DetallePaciente != detail {
		t.Fatalf("detail not updated: %q", updated.DetallePaciente)
	}

	got, err := svc.Get(ctx, "vet-1", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FormData["peso_kg"] != 14 {
		t.Fatalf("form data lost in round trip: %+v", got.FormData)
	}

	list, err := svc.History(ctx, "vet-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("history: %v len=%d", err, len(list))
	}
}

func TestSubmitStep2_WithoutCompleteStaysInProgress(t *testing.T) {
	ctx := context.Background()
	api := newFakeConsultAPI()
	svc := NewService(api, nil, nil, nil)

	created, err := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{Category: "gato"})
	if err != nil {
		t.Fatalf("step 1: %v", err)
	}
	updated, err := svc.SubmitStep2(ctx, "vet-1", "", created.ID, Step2Input{
		FormData: map[string]any{"peso_kg": 4},
	})
	if err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if updated.Status != clinical.ConsultationInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}
}

func TestSubmitStep1_RequiresCategory(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeConsultAPI(), nil, nil, nil)

	_, err := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMirror_FailureDoesNotBreakTheWizard(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{err: errors.New("supabase caído")}
	svc := NewService(newFakeConsultAPI(), mirror, nil, nil)

	_, err := svc.SubmitStep1(ctx, "vet-1", "tok", Step1Input{Category: "perro"})
	if err != nil {
		t.Fatalf("mirror failure must be swallowed: %v", err)
	}
	if mirror.calls != 1 {
		t.Fatalf("expected one mirror attempt, got %d", mirror.calls)
	}
}

func TestMirror_SkippedWithoutProviderToken(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{}
	svc := NewService(newFakeConsultAPI(), mirror, nil, nil)

	if _, err := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{Category: "perro"}); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if mirror.calls != 0 {
		t.Fatal("mirror must be skipped without a provider token")
	}
}

func TestAnalyze_GatesOnMembership(t *testing.T) {
	ctx := context.Background()
	api := newFakeConsultAPI()
	svc := NewService(api, nil, nil, nil)

	created, _ := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{Category: "perro"})

	broke := clinical.VeterinarianProfile{ID: "vet-1", MembershipTier: clinical.TierNone}
	if _, err := svc.Analyze(ctx, broke, created.ID); !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}

	// Sin membresía pero con consultas compradas también pasa.
	broke.ConsultationsRemaining = 2
	c, err := svc.Analyze(ctx, broke, created.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if c.Analysis == nil {
		t.Fatal("expected analysis text")
	}
}

func TestRate_ValidatesRange(t *testing.T) {
	ctx := context.Background()
	api := newFakeConsultAPI()
	svc := NewService(api, nil, nil, nil)

	created, _ := svc.SubmitStep1(ctx, "vet-1", "", Step1Input{Category: "perro"})

	for _, bad := range []int{0, 6, -1} {
		if _, err := svc.Rate(ctx, "vet-1", created.ID, bad); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d must be rejected, got %v", bad, err)
		}
	}
	c, err := svc.Rate(ctx, "vet-1", created.ID, 5)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if c.Rating == nil || *c.Rating != 5 {
		t.Fatalf("rating not stored: %+v", c.Rating)
	}
}

func TestUploadLabResult_GatesAndDelegates(t *testing.T) {
	ctx := context.Background()
	lab := &fakeLab{path: "vet-1/c-1/resultado.pdf"}
	svc := NewService(newFakeConsultAPI(), nil, lab, nil)

	broke := clinical.VeterinarianProfile{ID: "vet-1"}
	_, err := svc.UploadLabResult(ctx, "tok", broke, "c-1", "resultado.pdf", []byte("pdf"))
	if !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}

	path, err := svc.UploadLabResult(ctx, "tok", premiumProfile(), "c-1", "resultado.pdf", []byte("pdf"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if path != lab.path {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestCategories_PassThrough(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeConsultAPI(), nil, nil, nil)

	cats, err := svc.Categories(ctx)
	if err != nil || len(cats) != 3 {
		t.Fatalf("categories: %v len=%d", err, len(cats))
	}
}
