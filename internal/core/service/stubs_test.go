package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// Shared stub repositories for the service tests.

type stubUsageRepo struct {
	mu      sync.Mutex
	balance int64
	records []*domain.UsageRecord
	err     error
}

func (r *stubUsageRepo) ApplyDelta(_ context.Context, userID, feature string, delta int64) (int64, *domain.UsageRecord, error) {
	if r.err != nil {
		return 0, nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance += delta
	rec := &domain.UsageRecord{
		ID:         fmt.Sprintf("rec_%d", len(r.records)+1),
		UserID:     userID,
		Feature:    feature,
		TokenDelta: delta,
		CreatedAt:  time.Now().UTC(),
	}
	r.records = append(r.records, rec)
	return r.balance, rec, nil
}

func (r *stubUsageRepo) List(_ context.Context, f ports.UsageFilter) ([]*domain.UsageRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.UsageRecord, 0, len(r.records))
	for i := len(r.records) - 1; i >= 0; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *stubUsageRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.UserID != userID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

func (r *stubUsageRepo) lastRecord() *domain.UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

type stubArtifactRepo struct {
	saved     []*domain.Artifact
	createErr error
}

func (r *stubArtifactRepo) Create(_ context.Context, a *domain.Artifact) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.saved = append(r.saved, a)
	return nil
}

func (r *stubArtifactRepo) FindByID(_ context.Context, id, userID string) (*domain.Artifact, error) {
	for _, a := range r.saved {
		if a.ID == id && (userID == "" || a.UserID == userID) {
			return a, nil
		}
	}
	return nil, domain.ErrArtifactNotFound
}

func (r *stubArtifactRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.saved[:0]
	for _, a := range r.saved {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	r.saved = kept
	return nil
}

type stubTranscriptRepo struct {
	saved     []*domain.Transcript
	createErr error
	updateErr error
}

func (r *stubTranscriptRepo) Create(_ context.Context, tr *domain.Transcript) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.saved = append(r.saved, tr)
	return nil
}

func (r *stubTranscriptRepo) FindByID(_ context.Context, id, userID string) (*domain.Transcript, error) {
	for _, tr := range r.saved {
		if tr.ID == id && (userID == "" || tr.UserID == userID) {
			return tr, nil
		}
	}
	return nil, domain.ErrTranscriptNotFound
}

func (r *stubTranscriptRepo) UpdateRefinement(_ context.Context, id, userID string, kind domain.RefinementKind, refined string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for _, tr := range r.saved {
		if tr.ID == id && (userID == "" || tr.UserID == userID) {
			tr.RefinedContent = refined
			tr.RefinementKind = kind
			tr.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return domain.ErrTranscriptNotFound
}

func (r *stubTranscriptRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.saved[:0]
	for _, tr := range r.saved {
		if tr.UserID != userID {
			kept = append(kept, tr)
		}
	}
	r.saved = kept
	return nil
}

type stubUserRepo struct {
	users map[string]*domain.User
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	r := &stubUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return nil, domain.ErrUserExists
		}
	}
	clone := *u
	if clone.ID == "" {
		clone.ID = fmt.Sprintf("u_%d", len(r.users)+1)
	}
	r.users[clone.ID] = &clone
	return &clone, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context, _ ports.ListUsersFilter) ([]*domain.User, int64, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *stubUserRepo) Update(_ context.Context, u *domain.User) error {
	stored, ok := r.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	balance := stored.TokenBalance
	clone := *u
	clone.TokenBalance = balance
	r.users[u.ID] = &clone
	return nil
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}
