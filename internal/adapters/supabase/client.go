package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vet-clinical-support/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("supabase client not configured")
	ErrUnauthorized  = errors.New("supabase unauthorized")
	ErrUpstream      = errors.New("supabase upstream error")
)

// Config del proveedor BaaS. La anon key va en "apikey" y como Bearer
// cuando no hay sesión de usuario.
type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// Client cubre el path legado: auth de sesión, filas de las tablas
// consultations / medical_images (PostgREST) y object storage.
type Client struct {
	http    *httpclient.Client
	anonKey string
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
	return &Client{
		http:    hc,
		anonKey: strings.TrimSpace(cfg.AnonKey),
	}, nil
}

func NewClientWithHTTP(hc *httpclient.Client, anonKey string) *Client {
	return &Client{http: hc, anonKey: strings.TrimSpace(anonKey)}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && strings.TrimSpace(c.http.BaseURL) != "" && c.anonKey != ""
}

func (c *Client) headers(accessToken string) map[string]string {
	bearer := strings.TrimSpace(accessToken)
	if bearer == "" {
		bearer = c.anonKey
	}
	return map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + bearer,
	}
}

func wrapErr(err error) error {
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		if he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// ---------- auth ----------

// Session es la sesión del proveedor (no el perfil del backend clínico).
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SignInWithPassword hace el grant password del proveedor.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	if !c.IsConfigured() {
		return Session{}, ErrNotConfigured
	}
	body := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	var s Session
	err := c.http.DoJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		c.headers(""), body, &s)
	if err != nil {
		return Session{}, wrapErr(err)
	}
	if strings.TrimSpace(s.AccessToken) == "" {
		return Session{}, fmt.Errorf("%w: session sin access_token", ErrUpstream)
	}
	return s, nil
}

// SendMagicLink pide un enlace de acceso por correo.
func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	body := map[string]string{"email": strings.TrimSpace(email)}
	if err := c.http.DoJSON(ctx, http.MethodPost, "/auth/v1/magiclink", c.headers(""), body, nil); err != nil {
		return wrapErr(err)
	}
	return nil
}

// CurrentUser devuelve el usuario de una sesión activa del proveedor.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (User, error) {
	if !c.IsConfigured() {
		return User{}, ErrNotConfigured
	}
	if strings.TrimSpace(accessToken) == "" {
		return User{}, ErrUnauthorized
	}
	var u User
	if err := c.http.DoJSON(ctx, http.MethodGet, "/auth/v1/user", c.headers(accessToken), nil, &u); err != nil {
		return User{}, wrapErr(err)
	}
	if strings.TrimSpace(u.ID) == "" {
		return User{}, fmt.Errorf("%w: user sin id", ErrUpstream)
	}
	return u, nil
}

// SignOut revoca la sesión del proveedor. El caller lo trata como
// fire-and-forget: un fallo aquí no debe bloquear el logout local.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, "/auth/v1/logout", c.headers(accessToken), nil, nil); err != nil {
		return wrapErr(err)
	}
	return nil
}

// ---------- filas (PostgREST) ----------

// ConsultationRow es la fila legada de la tabla consultations.
type ConsultationRow struct {
	ID              string         `json:"id,omitempty"`
	VeterinarianID  string         `json:"veterinarian_id"`
	Category        string         `json:"category"`
	FormData        map[string]any `json:"form_data,omitempty"`
	DetallePaciente string         `json:"detalle_paciente"`
	Status          string         `json:"status"`
	CreatedAt       *time.Time     `json:"created_at,omitempty"`
}

// MedicalImageRow es la fila legada de la tabla medical_images.
type MedicalImageRow struct {
	ID             string     `json:"id,omitempty"`
	ConsultationID string     `json:"consultation_id"`
	VeterinarianID string     `json:"veterinarian_id"`
	StoragePath    string     `json:"storage_path"`
	Kind           string     `json:"kind"` // lab_result, radiografia, otro
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

func (c *Client) InsertConsultationRow(ctx context.Context, accessToken string, row ConsultationRow) (ConsultationRow, error) {
	if !c.IsConfigured() {
		return ConsultationRow{}, ErrNotConfigured
	}
	h := c.headers(accessToken)
	h["Prefer"] = "return=representation"
	var out []ConsultationRow
	if err := c.http.DoJSON(ctx, http.MethodPost, "/rest/v1/consultations", h, []ConsultationRow{row}, &out); err != nil {
		return ConsultationRow{}, wrapErr(err)
	}
	if len(out) == 0 {
		return ConsultationRow{}, fmt.Errorf("%w: insert sin representación", ErrUpstream)
	}
	return out[0], nil
}

func (c *Client) ListConsultationRows(ctx context.Context, accessToken, vetID string) ([]ConsultationRow, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	path := "/rest/v1/consultations?veterinarian_id=eq." + strings.TrimSpace(vetID) + "&order=created_at.desc"
	var out []ConsultationRow
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(accessToken), nil, &out); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func (c *Client) InsertMedicalImageRow(ctx context.Context, accessToken string, row MedicalImageRow) (MedicalImageRow, error) {
	if !c.IsConfigured() {
		return MedicalImageRow{}, ErrNotConfigured
	}
	h := c.headers(accessToken)
	h["Prefer"] = "return=representation"
	var out []MedicalImageRow
	if err := c.http.DoJSON(ctx, http.MethodPost, "/rest/v1/medical_images", h, []MedicalImageRow{row}, &out); err != nil {
		return MedicalImageRow{}, wrapErr(err)
	}
	if len(out) == 0 {
		return MedicalImageRow{}, fmt.Errorf("%w: insert sin representación", ErrUpstream)
	}
	return out[0], nil
}

// ---------- object storage ----------

// UploadObject sube un archivo al bucket y devuelve el storage path.
func (c *Client) UploadObject(ctx context.Context, accessToken, bucket, path string, content []byte) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	bucket = strings.Trim(strings.TrimSpace(bucket), "/")
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if bucket == "" || path == "" || len(content) == 0 {
		return "", fmt.Errorf("%w: upload sin bucket/path/contenido", ErrUpstream)
	}
	file := &httpclient.FilePart{
		FieldName: "file",
		FileName:  path,
		Content:   content,
	}
	err := c.http.DoMultipart(ctx, "/storage/v1/object/"+bucket+"/"+path,
		c.headers(accessToken), nil, file, nil)
	if err != nil {
		return "", wrapErr(err)
	}
	return bucket + "/" + path, nil
}
