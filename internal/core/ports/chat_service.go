package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/provider"
)

const (
	ModelSelectorStandard = "standard"
	ModelSelectorPremium  = "premium"
)

type ChatInput struct {
	UserID        string
	UserRole      string
	History       []provider.Message
	Message       string
	ModelSelector string
	SearchEnabled bool
	Attachments   []provider.Attachment
}

// StreamOutcome is what a drained relay session produced, handed back to the
// service for the persistence and billing step.
type StreamOutcome struct {
	Text      string
	Grounding *provider.GroundingMetadata
	TokenCost int64
}

type ChatCompletion struct {
	ArtifactID string `json:"artifact_id"`
	TokenCost  int64  `json:"token_cost"`
	NewBalance int64  `json:"new_balance"`
}

// ChatService opens the upstream stream and finalizes the operation once the
// relay has drained it. The transport loop itself lives with the caller.
type ChatService interface {
	OpenStream(ctx context.Context, input ChatInput) (provider.Stream, error)
	Complete(ctx context.Context, input ChatInput, outcome StreamOutcome) (*ChatCompletion, error)
}
