package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vet-clinical-support/internal/domain/session"
)

var (
	ErrNotFound = errors.New("not found")
)

type sessionsRepo struct {
	mu   sync.RWMutex
	byID map[string]session.Record
}

func NewSessionsRepo() session.Repository {
	return &sessionsRepo{
		byID: make(map[string]session.Record),
	}
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (session.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return session.Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *sessionsRepo) Put(ctx context.Context, rec session.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("session id required")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *sessionsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	return nil
}
