// Package memory is the degraded-mode storage backend: the same repository
// contracts as the Mongo implementation, backed by process memory. It is
// selected once at startup when the database is unreachable; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// Store holds all collections behind one mutex. The single lock is what
// makes ApplyDelta atomic: balance mutation and record append happen under
// the same critical section, so concurrent debits serialize per store.
type Store struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	usage       []usageEntry
	artifacts   map[string]*domain.Artifact
	transcripts map[string]*domain.Transcript
	seq         int64
}

type usageEntry struct {
	rec *domain.UsageRecord
	seq int64
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		artifacts:   make(map[string]*domain.Artifact),
		transcripts: make(map[string]*domain.Transcript),
	}
}

func (s *Store) Users() ports.UserRepository             { return &userRepo{s} }
func (s *Store) Usage() ports.UsageRepository            { return &usageRepo{s} }
func (s *Store) Artifacts() ports.ArtifactRepository     { return &artifactRepo{s} }
func (s *Store) Transcripts() ports.TranscriptRepository { return &transcriptRepo{s} }

// --- users -----------------------------------------------------------------

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return nil, domain.ErrUserExists
		}
	}

	clone := *u
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	r.s.users[clone.ID] = &clone

	out := clone
	return &out, nil
}

func (r *userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepo) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*domain.User
	for _, u := range r.s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Approved != nil && u.Approved != *f.Approved {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(u.Username), q) && !strings.Contains(strings.ToLower(u.Email), q) {
				continue
			}
		}
		clone := *u
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))

	return paginate(matched, f.Page, f.Limit), total, nil
}

func (r *userRepo) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	// The balance is owned by the ledger; Update never touches it.
	balance := stored.TokenBalance
	clone := *u
	clone.TokenBalance = balance
	r.s.users[u.ID] = &clone
	return nil
}

func (r *userRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

// --- usage ledger ----------------------------------------------------------

type usageRepo struct{ s *Store }

func (r *usageRepo) ApplyDelta(_ context.Context, userID, feature string, delta int64) (int64, *domain.UsageRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return 0, nil, domain.ErrUserNotFound
	}

	u.TokenBalance += delta
	r.s.seq++
	rec := &domain.UsageRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Feature:    feature,
		TokenDelta: delta,
		CreatedAt:  time.Now().UTC(),
	}
	r.s.usage = append(r.s.usage, usageEntry{rec: rec, seq: r.s.seq})

	clone := *rec
	return u.TokenBalance, &clone, nil
}

func (r *usageRepo) List(_ context.Context, f ports.UsageFilter) ([]*domain.UsageRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []usageEntry
	for _, e := range r.s.usage {
		rec := e.rec
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.Feature != "" && rec.Feature != f.Feature {
			continue
		}
		if !f.DateFrom.IsZero() && rec.CreatedAt.Before(f.DateFrom) {
			continue
		}
		if !f.DateTo.IsZero() && rec.CreatedAt.After(f.DateTo) {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first; insertion sequence breaks timestamp ties.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].rec.CreatedAt.Equal(matched[j].rec.CreatedAt) {
			return matched[i].seq > matched[j].seq
		}
		return matched[i].rec.CreatedAt.After(matched[j].rec.CreatedAt)
	})

	out := make([]*domain.UsageRecord, 0, len(matched))
	for _, e := range matched {
		clone := *e.rec
		out = append(out, &clone)
	}
	return paginate(out, f.Page, f.Limit), nil
}

func (r *usageRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.usage[:0]
	for _, e := range r.s.usage {
		if e.rec.UserID != userID {
			kept = append(kept, e)
		}
	}
	r.s.usage = kept
	return nil
}

// --- artifacts -------------------------------------------------------------

type artifactRepo struct{ s *Store }

func (r *artifactRepo) Create(_ context.Context, a *domain.Artifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	clone := *a
	r.s.artifacts[a.ID] = &clone
	return nil
}

func (r *artifactRepo) FindByID(_ context.Context, id, userID string) (*domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.artifacts[id]
	if !ok || (userID != "" && a.UserID != userID) {
		return nil, domain.ErrArtifactNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *artifactRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, a := range r.s.artifacts {
		if a.UserID == userID {
			delete(r.s.artifacts, id)
		}
	}
	return nil
}

// --- transcripts -----------------------------------------------------------

type transcriptRepo struct{ s *Store }

func (r *transcriptRepo) Create(_ context.Context, tr *domain.Transcript) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	clone := *tr
	r.s.transcripts[tr.ID] = &clone
	return nil
}

func (r *transcriptRepo) FindByID(_ context.Context, id, userID string) (*domain.Transcript, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tr, ok := r.s.transcripts[id]
	if !ok || (userID != "" && tr.UserID != userID) {
		return nil, domain.ErrTranscriptNotFound
	}
	clone := *tr
	return &clone, nil
}

func (r *transcriptRepo) UpdateRefinement(_ context.Context, id, userID string, kind domain.RefinementKind, refined string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tr, ok := r.s.transcripts[id]
	if !ok || (userID != "" && tr.UserID != userID) {
		return domain.ErrTranscriptNotFound
	}
	tr.RefinedContent = refined
	tr.RefinementKind = kind
	tr.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *transcriptRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, tr := range r.s.transcripts {
		if tr.UserID == userID {
			delete(r.s.transcripts, id)
		}
	}
	return nil
}

// paginate slices page/limit out of items; page is 1-based, limit <= 0
// returns everything.
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
