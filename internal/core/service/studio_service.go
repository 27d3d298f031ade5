package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/api/metrics"
	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
	"github.com/contentforge/studio-api/internal/textparse"
)

// Ledger feature tags, one per billable operation.
const (
	FeatureResearch    = "research"
	FeatureImageGen    = "image-generation"
	FeatureImageEdit   = "image-edit"
	FeatureInfographic = "infographic"
	FeatureChat        = "chat"
	FeatureTranscribe  = "transcription"
	FeatureRefine      = "transcript-refinement"
	FeatureAdminGrant  = "admin-grant"
)

const maxFacts = 3

var researchLabels = []string{"FACTS", "IMAGE_PROMPT"}

// StudioConfig selects which provider models the pipelines use.
type StudioConfig struct {
	TextModel  string
	ImageModel string
}

// StudioService runs the image-oriented pipelines: research, one-shot image
// generation and editing, and the two-step research-then-generate flow.
type StudioService struct {
	gateway   provider.Gateway
	artifacts ports.ArtifactRepository
	ledger    ports.LedgerService
	cfg       StudioConfig
	logger    zerolog.Logger
}

func NewStudioService(gateway provider.Gateway, artifacts ports.ArtifactRepository, ledger ports.LedgerService, cfg StudioConfig, logger zerolog.Logger) *StudioService {
	return &StudioService{gateway: gateway, artifacts: artifacts, ledger: ledger, cfg: cfg, logger: logger}
}

// Research performs the search-grounded research step and debits its cost.
func (s *StudioService) Research(ctx context.Context, input ports.ResearchInput) (*ports.ResearchResult, error) {
	result := s.runResearch(ctx, input)

	newBalance, err := s.ledger.Debit(ctx, input.UserID, FeatureResearch, result.TokenCost)
	if err != nil {
		return nil, err
	}
	result.NewBalance = newBalance
	return result, nil
}

// runResearch never fails: a provider error or unparseable output degrades
// to a synthesized prompt built from the request parameters, with zero cost.
func (s *StudioService) runResearch(ctx context.Context, input ports.ResearchInput) *ports.ResearchResult {
	req := provider.Request{
		Model:         s.cfg.TextModel,
		Prompt:        buildResearchPrompt(input),
		SearchEnabled: true,
	}

	resp, err := s.gateway.Generate(ctx, req)
	observeProvider("generate", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", input.Topic).Msg("research step failed, using synthesized prompt")
		// A failed call may still have consumed tokens. The upstream error
		// carries the usage it reported, and that cost is debited like any
		// successful step's.
		var cost int64
		var pe *provider.Error
		if errors.As(err, &pe) {
			cost = pe.CostIncurred
		}
		return &ports.ResearchResult{
			ImagePrompt:  fallbackImagePrompt(input),
			TokenCost:    cost,
			FallbackUsed: true,
		}
	}

	sections := textparse.Sections(resp.Text, researchLabels)
	facts := textparse.Items(sections["FACTS"], maxFacts)
	imagePrompt := strings.TrimSpace(sections["IMAGE_PROMPT"])

	fallbackUsed := false
	if imagePrompt == "" {
		imagePrompt = fallbackImagePrompt(input)
		fallbackUsed = true
		s.logger.Debug().Str("topic", input.Topic).Msg("research output missing image prompt section")
	}

	return &ports.ResearchResult{
		ImagePrompt:   imagePrompt,
		Facts:         facts,
		SearchResults: dedupeSources(resp.Grounding),
		TokenCost:     resp.TokenCost,
		FallbackUsed:  fallbackUsed,
	}
}

// GenerateImage runs a one-shot generation, persists the artifact, and
// debits the reported cost.
func (s *StudioService) GenerateImage(ctx context.Context, input ports.GenerateImageInput) (*ports.ImageResult, error) {
	resp, err := s.gateway.Generate(ctx, provider.Request{
		Model:       s.cfg.ImageModel,
		Prompt:      input.Prompt,
		ImageOutput: true,
		AspectRatio: input.AspectRatio,
	})
	observeProvider("generate", err)
	if err != nil {
		return nil, err
	}
	if resp.ImageData == "" {
		return nil, &provider.Error{Message: "provider returned no image payload"}
	}

	return s.finishImage(ctx, input.UserID, domain.ArtifactImage, FeatureImageGen, input.Prompt, resp)
}

// EditImage applies an instruction to an existing image.
func (s *StudioService) EditImage(ctx context.Context, input ports.EditImageInput) (*ports.ImageResult, error) {
	resp, err := s.gateway.Generate(ctx, provider.Request{
		Model:       s.cfg.ImageModel,
		Prompt:      input.Instruction,
		ImageOutput: true,
		Attachments: []provider.Attachment{{MIME: input.ImageMIME, Data: input.ImageData}},
	})
	observeProvider("generate", err)
	if err != nil {
		return nil, err
	}
	if resp.ImageData == "" {
		return nil, &provider.Error{Message: "provider returned no image payload"}
	}

	return s.finishImage(ctx, input.UserID, domain.ArtifactImage, FeatureImageEdit, input.Instruction, resp)
}

func (s *StudioService) finishImage(ctx context.Context, userID string, kind domain.ArtifactKind, feature, prompt string, resp *provider.Response) (*ports.ImageResult, error) {
	artifact := &domain.Artifact{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Prompt:    prompt,
		TokenCost: resp.TokenCost,
		CreatedAt: time.Now().UTC(),
	}
	artifact.ImageRef = "images/" + artifact.ID

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("image artifact persistence failed")
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	newBalance, err := s.ledger.Debit(ctx, userID, feature, resp.TokenCost)
	if err != nil {
		return nil, err
	}

	return &ports.ImageResult{
		ArtifactID: artifact.ID,
		ImageData:  resp.ImageData,
		ImageMIME:  resp.ImageMIME,
		TokenCost:  resp.TokenCost,
		NewBalance: newBalance,
	}, nil
}

// CreateInfographic is the two-step research-then-generate pipeline. The
// research step degrades gracefully; the generation step is fatal. Both
// steps' reported costs are summed into a single debit. When generation
// fails after research ran, the research cost still stands.
func (s *StudioService) CreateInfographic(ctx context.Context, input ports.ResearchInput) (*ports.InfographicResult, error) {
	research := s.runResearch(ctx, input)

	resp, err := s.gateway.Generate(ctx, provider.Request{
		Model:       s.cfg.ImageModel,
		Prompt:      research.ImagePrompt,
		ImageOutput: true,
		AspectRatio: input.AspectRatio,
	})
	observeProvider("generate", err)
	if err != nil {
		if research.TokenCost > 0 {
			if _, derr := s.ledger.Debit(ctx, input.UserID, FeatureInfographic, research.TokenCost); derr != nil {
				s.logger.Error().Err(derr).Str("user_id", input.UserID).Msg("failed to debit research cost after generation failure")
			}
		}
		return nil, err
	}
	if resp.ImageData == "" {
		return nil, &provider.Error{Message: "provider returned no image payload"}
	}

	artifact := &domain.Artifact{
		ID:            uuid.NewString(),
		UserID:        input.UserID,
		Kind:          domain.ArtifactInfographic,
		Title:         input.Topic,
		Prompt:        research.ImagePrompt,
		Facts:         research.Facts,
		SearchResults: research.SearchResults,
		TokenCost:     research.TokenCost + resp.TokenCost,
		CreatedAt:     time.Now().UTC(),
	}
	artifact.ImageRef = "images/" + artifact.ID

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("infographic persistence failed")
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	total := research.TokenCost + resp.TokenCost
	newBalance, err := s.ledger.Debit(ctx, input.UserID, FeatureInfographic, total)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("artifact_id", artifact.ID).
		Str("user_id", input.UserID).
		Int64("token_cost", total).
		Bool("fallback_used", research.FallbackUsed).
		Msg("infographic created")

	return &ports.InfographicResult{
		ArtifactID:    artifact.ID,
		ImagePrompt:   research.ImagePrompt,
		Facts:         research.Facts,
		SearchResults: research.SearchResults,
		ImageData:     resp.ImageData,
		ImageMIME:     resp.ImageMIME,
		TokenCost:     total,
		NewBalance:    newBalance,
		FallbackUsed:  research.FallbackUsed,
	}, nil
}

// --- prompt construction ---------------------------------------------------

func buildResearchPrompt(input ports.ResearchInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the topic %q and prepare an infographic brief.\n", input.Topic)
	if input.Language != "" {
		fmt.Fprintf(&b, "Write all output in %s.\n", input.Language)
	}
	if input.ComplexityLevel != "" {
		fmt.Fprintf(&b, "Target audience complexity: %s.\n", input.ComplexityLevel)
	}
	b.WriteString("\nRespond with exactly two sections:\n")
	fmt.Fprintf(&b, "FACTS: up to %d short, verifiable facts, one per line as a bulleted list.\n", maxFacts)
	fmt.Fprintf(&b, "IMAGE_PROMPT: one detailed prompt for a %s style infographic", styleOrDefault(input.VisualStyle))
	if input.AspectRatio != "" {
		fmt.Fprintf(&b, " with a %s aspect ratio", input.AspectRatio)
	}
	b.WriteString(".\n")
	return b.String()
}

// fallbackImagePrompt is the synthesized default used when research output
// lacks the expected sections. It always embeds the original topic string.
func fallbackImagePrompt(input ports.ResearchInput) string {
	return fmt.Sprintf("A clear, well-organized %s style infographic about %s, with concise labels and a balanced layout.",
		styleOrDefault(input.VisualStyle), input.Topic)
}

func styleOrDefault(style string) string {
	if style == "" {
		return "modern flat"
	}
	return style
}

// dedupeSources flattens grounding metadata into citations, deduplicated by
// URL, first occurrence wins.
func dedupeSources(gm *provider.GroundingMetadata) []domain.SearchResult {
	if gm == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(gm.Sources))
	var out []domain.SearchResult
	for _, src := range gm.Sources {
		if src.URL == "" {
			continue
		}
		if _, dup := seen[src.URL]; dup {
			continue
		}
		seen[src.URL] = struct{}{}
		out = append(out, domain.SearchResult{Title: src.Title, URL: src.URL})
	}
	return out
}

// observeProvider records one gateway invocation in the metrics.
func observeProvider(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(mode, outcome).Inc()
}
