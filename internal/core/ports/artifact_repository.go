package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// ArtifactRepository defines persistence for completed operation outputs.
type ArtifactRepository interface {
	Create(ctx context.Context, a *domain.Artifact) error
	// FindByID retrieves an artifact. When userID is non-empty the lookup is
	// additionally scoped to that owner.
	FindByID(ctx context.Context, id, userID string) (*domain.Artifact, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// TranscriptRepository defines persistence for transcription artifacts.
// Raw content is immutable once created; refinements only ever touch the
// refined fields.
type TranscriptRepository interface {
	Create(ctx context.Context, tr *domain.Transcript) error
	FindByID(ctx context.Context, id, userID string) (*domain.Transcript, error)
	UpdateRefinement(ctx context.Context, id, userID string, kind domain.RefinementKind, refined string) error
	DeleteByUser(ctx context.Context, userID string) error
}
