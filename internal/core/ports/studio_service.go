package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// ResearchInput describes a research request for an infographic topic.
type ResearchInput struct {
	UserID          string
	Topic           string
	ComplexityLevel string
	VisualStyle     string
	Language        string
	AspectRatio     string
}

// ResearchResult is the parsed outcome of the research step. FallbackUsed is
// set when the model output lacked the expected sections and the prompt was
// synthesized from the request parameters instead.
type ResearchResult struct {
	ImagePrompt   string                `json:"image_prompt"`
	Facts         []string              `json:"facts"`
	SearchResults []domain.SearchResult `json:"search_results"`
	TokenCost     int64                 `json:"token_cost"`
	NewBalance    int64                 `json:"new_balance"`
	FallbackUsed  bool                  `json:"fallback_used,omitempty"`
}

type GenerateImageInput struct {
	UserID      string
	Prompt      string
	AspectRatio string
}

type EditImageInput struct {
	UserID      string
	Instruction string
	ImageMIME   string
	ImageData   []byte
}

// ImageResult carries the generated binary back to the caller; the artifact
// stores only a reference.
type ImageResult struct {
	ArtifactID string `json:"artifact_id"`
	ImageData  string `json:"image_data"` // base64
	ImageMIME  string `json:"image_mime"`
	TokenCost  int64  `json:"token_cost"`
	NewBalance int64  `json:"new_balance"`
}

// InfographicResult is the outcome of the two-step research-then-generate
// pipeline. TokenCost is the sum of both steps, debited once.
type InfographicResult struct {
	ArtifactID    string                `json:"artifact_id"`
	ImagePrompt   string                `json:"image_prompt"`
	Facts         []string              `json:"facts"`
	SearchResults []domain.SearchResult `json:"search_results"`
	ImageData     string                `json:"image_data"`
	ImageMIME     string                `json:"image_mime"`
	TokenCost     int64                 `json:"token_cost"`
	NewBalance    int64                 `json:"new_balance"`
	FallbackUsed  bool                  `json:"fallback_used,omitempty"`
}

// StudioService runs the image-oriented operation pipelines.
type StudioService interface {
	Research(ctx context.Context, input ResearchInput) (*ResearchResult, error)
	GenerateImage(ctx context.Context, input GenerateImageInput) (*ImageResult, error)
	EditImage(ctx context.Context, input EditImageInput) (*ImageResult, error)
	CreateInfographic(ctx context.Context, input ResearchInput) (*InfographicResult, error)
}
