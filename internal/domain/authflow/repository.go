package authflow

import "context"

// Repository guarda el estado Pending2FA por sesión (solo memoria).
type Repository interface {
	Get(ctx context.Context, sessionID string) (Pending, error)
	Put(ctx context.Context, p Pending) error
	Delete(ctx context.Context, sessionID string) error
}
