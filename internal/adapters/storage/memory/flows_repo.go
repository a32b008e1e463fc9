package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vet-clinical-support/internal/domain/authflow"
	"vet-clinical-support/internal/domain/cedula"
)

// Los estados de flujo (nonce 2FA, gate de cédula) son transitorios por
// diseño: no tienen variante postgres.

type pendingRepo struct {
	mu   sync.RWMutex
	byID map[string]authflow.Pending
}

func NewPendingRepo() authflow.Repository {
	return &pendingRepo{
		byID: make(map[string]authflow.Pending),
	}
}

func (r *pendingRepo) Get(ctx context.Context, sessionID string) (authflow.Pending, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[sessionID]
	if !ok {
		return authflow.Pending{}, ErrNotFound
	}
	return p, nil
}

func (r *pendingRepo) Put(ctx context.Context, p authflow.Pending) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.SessionID) == "" {
		return errors.New("session id required")
	}
	r.byID[p.SessionID] = p
	return nil
}

func (r *pendingRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, sessionID)
	return nil
}

type cedulaFlowRepo struct {
	mu   sync.RWMutex
	byID map[string]cedula.FlowState
}

func NewCedulaFlowRepo() cedula.Repository {
	return &cedulaFlowRepo{
		byID: make(map[string]cedula.FlowState),
	}
}

func (r *cedulaFlowRepo) Get(ctx context.Context, sessionID string) (cedula.FlowState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[sessionID]
	if !ok {
		return cedula.FlowState{}, ErrNotFound
	}
	return f, nil
}

func (r *cedulaFlowRepo) Put(ctx context.Context, f cedula.FlowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(f.SessionID) == "" {
		return errors.New("session id required")
	}
	r.byID[f.SessionID] = f
	return nil
}

func (r *cedulaFlowRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, sessionID)
	return nil
}
