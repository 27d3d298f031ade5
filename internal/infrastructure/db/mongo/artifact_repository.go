package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contentforge/studio-api/internal/core/domain"
)

const (
	collectionArtifacts   = "artifacts"
	collectionTranscripts = "transcripts"
)

type ArtifactRepository struct {
	col *mongo.Collection
}

func NewArtifactRepository(db *mongo.Database) *ArtifactRepository {
	return &ArtifactRepository{col: db.Collection(collectionArtifacts)}
}

func (r *ArtifactRepository) Create(ctx context.Context, a *domain.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// FindByID retrieves an artifact. When userID is non-empty the filter is
// additionally scoped to that owner, so users never see each other's output.
func (r *ArtifactRepository) FindByID(ctx context.Context, id, userID string) (*domain.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id}
	if userID != "" {
		filter["user_id"] = userID
	}

	var a domain.Artifact
	if err := r.col.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("find artifact: %w", err)
	}
	return &a, nil
}

func (r *ArtifactRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete artifacts by user: %w", err)
	}
	return nil
}

type TranscriptRepository struct {
	col *mongo.Collection
}

func NewTranscriptRepository(db *mongo.Database) *TranscriptRepository {
	return &TranscriptRepository{col: db.Collection(collectionTranscripts)}
}

func (r *TranscriptRepository) Create(ctx context.Context, tr *domain.Transcript) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, tr); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) FindByID(ctx context.Context, id, userID string) (*domain.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id}
	if userID != "" {
		filter["user_id"] = userID
	}

	var tr domain.Transcript
	if err := r.col.FindOne(ctx, filter).Decode(&tr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("find transcript: %w", err)
	}
	return &tr, nil
}

// UpdateRefinement writes the refined fields only. The raw content column is
// never part of the update document, so refinement cannot clobber it.
func (r *TranscriptRepository) UpdateRefinement(ctx context.Context, id, userID string, kind domain.RefinementKind, refined string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id}
	if userID != "" {
		filter["user_id"] = userID
	}
	update := bson.M{"$set": bson.M{
		"refined_content": refined,
		"refinement_kind": kind,
		"updated_at":      time.Now().UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update refinement: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTranscriptNotFound
	}
	return nil
}

func (r *TranscriptRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete transcripts by user: %w", err)
	}
	return nil
}
