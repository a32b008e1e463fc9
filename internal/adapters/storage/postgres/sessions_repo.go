package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/ports/clinical"
)

// SessionsRepo persiste los records de sesión (el "local storage" del lado
// servidor). El perfil va como JSON: se reemplaza completo, nunca se parcha.
//
// Esquema esperado:
//
//	CREATE TABLE browser_sessions (
//	    id               text PRIMARY KEY,
//	    profile          jsonb,
//	    provider_token   text NOT NULL DEFAULT '',
//	    theme            text NOT NULL DEFAULT 'light',
//	    current_view     text NOT NULL DEFAULT '',
//	    pending_checkout text NOT NULL DEFAULT '',
//	    privacy_accepted boolean NOT NULL DEFAULT false,
//	    loading          boolean NOT NULL DEFAULT true,
//	    created_at       timestamptz NOT NULL,
//	    updated_at       timestamptz NOT NULL
//	);
type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Get(ctx context.Context, id string) (session.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, profile, provider_token,
			theme, privacy_accepted, loading,
			current_view, pending_checkout,
			created_at, updated_at
		FROM browser_sessions
		WHERE id = $1
	`, id)

	var rec session.Record
	var profile []byte
	if err := row.Scan(
		&rec.ID,
		&profile,
		&rec.ProviderToken,
		&rec.Theme,
		&rec.PrivacyAccepted,
		&rec.Loading,
		&rec.CurrentView,
		&rec.PendingCheckout,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return session.Record{}, ErrNotFound
		}
		return session.Record{}, err
	}

	if len(profile) > 0 && string(profile) != "null" {
		var p clinical.VeterinarianProfile
		if err := json.Unmarshal(profile, &p); err != nil {
			// perfil corrupto: mejor sesión sin perfil que un 500 al arrancar
			rec.Profile = nil
		} else {
			rec.Profile = &p
		}
	}

	return rec, nil
}

func (r *SessionsRepo) Put(ctx context.Context, rec session.Record) error {
	var profile any
	if rec.Profile != nil {
		b, err := json.Marshal(rec.Profile)
		if err != nil {
			return err
		}
		profile = b
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO browser_sessions (
			id, profile, provider_token,
			theme, privacy_accepted, loading,
			current_view, pending_checkout,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			profile = EXCLUDED.profile,
			provider_token = EXCLUDED.provider_token,
			theme = EXCLUDED.theme,
			privacy_accepted = EXCLUDED.privacy_accepted,
			loading = EXCLUDED.loading,
			current_view = EXCLUDED.current_view,
			pending_checkout = EXCLUDED.pending_checkout,
			updated_at = EXCLUDED.updated_at
	`,
		rec.ID,
		profile,
		rec.ProviderToken,
		rec.Theme,
		rec.PrivacyAccepted,
		rec.Loading,
		rec.CurrentView,
		rec.PendingCheckout,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM browser_sessions WHERE id = $1`, id)
	return err
}
