package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/ports/clinical"
)

// Puentes entre el cliente del proveedor y los ports de dominio.
// Los dominios declaran interfaces mínimas; aquí se adaptan los shapes.

// SessionProvider implementa session.Provider.
type SessionProvider struct {
	c *Client
}

func NewSessionProvider(c *Client) *SessionProvider {
	return &SessionProvider{c: c}
}

func (p *SessionProvider) CurrentUser(ctx context.Context, accessToken string) (session.ProviderUser, error) {
	u, err := p.c.CurrentUser(ctx, accessToken)
	if err != nil {
		return session.ProviderUser{}, err
	}
	return session.ProviderUser{
		ID:    u.ID,
		Email: u.Email,
		Phone: u.Phone,
	}, nil
}

func (p *SessionProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.c.SignOut(ctx, accessToken)
}

// ConsultationMirror implementa consultations.Mirror sobre la tabla legada.
type ConsultationMirror struct {
	c *Client
}

func NewConsultationMirror(c *Client) *ConsultationMirror {
	return &ConsultationMirror{c: c}
}

func (m *ConsultationMirror) MirrorConsultation(ctx context.Context, accessToken string, c clinical.Consultation) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := m.c.InsertConsultationRow(ctx, accessToken, ConsultationRow{
		ID:              c.ID,
		VeterinarianID:  c.VeterinarianID,
		Category:        c.Category,
		FormData:        c.FormData,
		DetallePaciente: c.DetallePaciente,
		Status:          string(c.Status),
		CreatedAt:       &created,
	})
	return err
}

// LabStorage implementa consultations.LabStorage: sube el archivo al bucket
// y registra la fila en medical_images.
type LabStorage struct {
	c      *Client
	bucket string
}

func NewLabStorage(c *Client, bucket string) *LabStorage {
	if strings.TrimSpace(bucket) == "" {
		bucket = "lab-results"
	}
	return &LabStorage{c: c, bucket: bucket}
}

func (l *LabStorage) StoreLabImage(ctx context.Context, accessToken, vetID, consultationID, fileName string, content []byte) (string, error) {
	path := fmt.Sprintf("%s/%s/%s", strings.TrimSpace(vetID), strings.TrimSpace(consultationID), strings.TrimSpace(fileName))
	storagePath, err := l.c.UploadObject(ctx, accessToken, l.bucket, path, content)
	if err != nil {
		return "", err
	}
	_, err = l.c.InsertMedicalImageRow(ctx, accessToken, MedicalImageRow{
		ConsultationID: consultationID,
		VeterinarianID: vetID,
		StoragePath:    storagePath,
		Kind:           "lab_result",
	})
	if err != nil {
		return "", err
	}
	return storagePath, nil
}
