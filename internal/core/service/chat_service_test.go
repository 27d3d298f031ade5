package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
)

func newChat(gw provider.Gateway, artifacts *stubArtifactRepo, usage *stubUsageRepo) *ChatService {
	ledger := NewLedgerService(usage, zerolog.Nop())
	return NewChatService(gw, artifacts, ledger, ChatConfig{
		StandardModel: "standard-model",
		PremiumModel:  "premium-model",
	}, zerolog.Nop())
}

func TestChatOpenStream_StandardModel(t *testing.T) {
	var requested string
	gw := &provider.MockGateway{
		StreamFunc: func(_ context.Context, req provider.Request) (provider.Stream, error) {
			requested = req.Model
			return provider.NewStaticStream(nil, 0), nil
		},
	}
	svc := newChat(gw, &stubArtifactRepo{}, &stubUsageRepo{})

	_, err := svc.OpenStream(context.Background(), ports.ChatInput{
		UserID:        "u_1",
		UserRole:      domain.RoleStandard,
		Message:       "hi",
		ModelSelector: ports.ModelSelectorStandard,
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if requested != "standard-model" {
		t.Fatalf("expected standard model, got %q", requested)
	}
}

func TestChatOpenStream_PremiumRequiresElevatedRole(t *testing.T) {
	gw := &provider.MockGateway{}
	svc := newChat(gw, &stubArtifactRepo{}, &stubUsageRepo{})

	_, err := svc.OpenStream(context.Background(), ports.ChatInput{
		UserID:        "u_1",
		UserRole:      domain.RoleStandard,
		Message:       "hi",
		ModelSelector: ports.ModelSelectorPremium,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	for _, role := range []string{domain.RoleElevated, domain.RoleAdmin} {
		if _, err := svc.OpenStream(context.Background(), ports.ChatInput{
			UserID:        "u_1",
			UserRole:      role,
			Message:       "hi",
			ModelSelector: ports.ModelSelectorPremium,
		}); err != nil {
			t.Fatalf("role %s should unlock premium: %v", role, err)
		}
	}
}

func TestChatComplete_PersistsThenDebits(t *testing.T) {
	artifacts := &stubArtifactRepo{}
	usage := &stubUsageRepo{balance: 100}
	svc := newChat(&provider.MockGateway{}, artifacts, usage)

	outcome := ports.StreamOutcome{
		Text:      "full reply",
		TokenCost: 12,
		Grounding: &provider.GroundingMetadata{Sources: []provider.Source{
			{Title: "src", URL: "https://s.example"},
			{Title: "dup", URL: "https://s.example"},
		}},
	}
	completion, err := svc.Complete(context.Background(), ports.ChatInput{UserID: "u_1"}, outcome)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if len(artifacts.saved) != 1 {
		t.Fatalf("expected one artifact, got %d", len(artifacts.saved))
	}
	saved := artifacts.saved[0]
	if saved.Content != "full reply" || saved.Kind != domain.ArtifactChatMessage {
		t.Fatalf("unexpected artifact: %+v", saved)
	}
	if len(saved.SearchResults) != 1 {
		t.Fatalf("grounding sources must be deduplicated, got %d", len(saved.SearchResults))
	}
	if completion.NewBalance != 88 {
		t.Fatalf("expected balance 88, got %d", completion.NewBalance)
	}
}

func TestChatComplete_PersistFailureSkipsDebit(t *testing.T) {
	artifacts := &stubArtifactRepo{createErr: errors.New("db down")}
	usage := &stubUsageRepo{balance: 100}
	svc := newChat(&provider.MockGateway{}, artifacts, usage)

	_, err := svc.Complete(context.Background(), ports.ChatInput{UserID: "u_1"}, ports.StreamOutcome{Text: "x", TokenCost: 9})
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if len(usage.records) != 0 {
		t.Fatalf("debit must not happen when persistence fails")
	}
}
