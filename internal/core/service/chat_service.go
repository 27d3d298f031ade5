package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
)

// ChatConfig selects the models behind the chat model selector.
type ChatConfig struct {
	StandardModel string
	PremiumModel  string
}

// ChatService opens streamed chat turns and finalizes them after the relay
// has drained the stream.
type ChatService struct {
	gateway   provider.Gateway
	artifacts ports.ArtifactRepository
	ledger    ports.LedgerService
	cfg       ChatConfig
	logger    zerolog.Logger
}

func NewChatService(gateway provider.Gateway, artifacts ports.ArtifactRepository, ledger ports.LedgerService, cfg ChatConfig, logger zerolog.Logger) *ChatService {
	return &ChatService{gateway: gateway, artifacts: artifacts, ledger: ledger, cfg: cfg, logger: logger}
}

// OpenStream resolves the model selector and starts the provider stream.
// The premium selector requires an elevated or admin role.
func (s *ChatService) OpenStream(ctx context.Context, input ports.ChatInput) (provider.Stream, error) {
	model, err := s.resolveModel(input)
	if err != nil {
		return nil, err
	}

	stream, err := s.gateway.Stream(ctx, provider.Request{
		Model:         model,
		Prompt:        input.Message,
		History:       input.History,
		SearchEnabled: input.SearchEnabled,
		Attachments:   input.Attachments,
	})
	observeProvider("stream", err)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Complete persists the assistant turn as a chat artifact and debits the
// stream's reported cost in one ledger call.
func (s *ChatService) Complete(ctx context.Context, input ports.ChatInput, outcome ports.StreamOutcome) (*ports.ChatCompletion, error) {
	artifact := &domain.Artifact{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Kind:      domain.ArtifactChatMessage,
		Content:   outcome.Text,
		TokenCost: outcome.TokenCost,
		CreatedAt: time.Now().UTC(),
	}
	if outcome.Grounding != nil {
		artifact.SearchResults = dedupeSources(outcome.Grounding)
	}

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("chat artifact persistence failed")
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	newBalance, err := s.ledger.Debit(ctx, input.UserID, FeatureChat, outcome.TokenCost)
	if err != nil {
		return nil, err
	}

	return &ports.ChatCompletion{
		ArtifactID: artifact.ID,
		TokenCost:  outcome.TokenCost,
		NewBalance: newBalance,
	}, nil
}

func (s *ChatService) resolveModel(input ports.ChatInput) (string, error) {
	switch input.ModelSelector {
	case "", ports.ModelSelectorStandard:
		return s.cfg.StandardModel, nil
	case ports.ModelSelectorPremium:
		if input.UserRole != domain.RoleElevated && input.UserRole != domain.RoleAdmin {
			return "", domain.ErrForbidden
		}
		return s.cfg.PremiumModel, nil
	default:
		return "", fmt.Errorf("unknown model selector %q", input.ModelSelector)
	}
}
