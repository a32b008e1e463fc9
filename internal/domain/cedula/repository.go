package cedula

import "context"

// Repository guarda el FlowState por sesión. Solo hay implementación en
// memoria: este estado es transitorio por diseño.
type Repository interface {
	Get(ctx context.Context, sessionID string) (FlowState, error)
	Put(ctx context.Context, f FlowState) error
	Delete(ctx context.Context, sessionID string) error
}
