package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
	"github.com/contentforge/studio-api/internal/relay"
)

type stubChatService struct {
	openFn     func(ctx context.Context, input ports.ChatInput) (provider.Stream, error)
	completeFn func(ctx context.Context, input ports.ChatInput, outcome ports.StreamOutcome) (*ports.ChatCompletion, error)
}

func (s *stubChatService) OpenStream(ctx context.Context, input ports.ChatInput) (provider.Stream, error) {
	return s.openFn(ctx, input)
}

func (s *stubChatService) Complete(ctx context.Context, input ports.ChatInput, outcome ports.StreamOutcome) (*ports.ChatCompletion, error) {
	return s.completeFn(ctx, input, outcome)
}

// hangupStream mimics the provider transport during a client disconnect: the
// request context's cancellation propagates into the upstream call, so Recv
// fails with the provider's own error rather than anything relay-specific.
type hangupStream struct {
	cancel context.CancelFunc
	sent   bool
	closed bool
}

func (s *hangupStream) Recv() (provider.Chunk, error) {
	if !s.sent {
		s.sent = true
		return provider.Chunk{TextDelta: "partial "}, nil
	}
	s.cancel()
	return provider.Chunk{}, &provider.Error{Message: "context canceled"}
}

func (s *hangupStream) Close() error {
	s.closed = true
	return nil
}

func TestChatHandler_DisconnectMidStreamRecordsClientGone(t *testing.T) {
	c, rec := newTestContext(t, http.MethodPost, "/api/studio/chat", `{"message":"hi"}`)
	c.Set("user_id", "user-1")
	c.Set("role", domain.RoleStandard)

	ctx, cancel := context.WithCancel(c.Request().Context())
	c.SetRequest(c.Request().WithContext(ctx))

	stream := &hangupStream{cancel: cancel}
	stub := &stubChatService{
		openFn: func(ctx context.Context, input ports.ChatInput) (provider.Stream, error) {
			return stream, nil
		},
		completeFn: func(ctx context.Context, input ports.ChatInput, outcome ports.StreamOutcome) (*ports.ChatCompletion, error) {
			t.Error("Complete must not run for a disconnected client")
			return nil, nil
		},
	}
	sink := &recordingAudit{}
	h := NewChatHandler(stub, sink, zerolog.Nop())

	if err := h.Chat(c); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	evs := sink.all()
	if len(evs) != 1 {
		t.Fatalf("audit events = %+v, want exactly one", evs)
	}
	if evs[0].Err != relay.ErrClientGone.Error() {
		t.Errorf("audit err = %q, want the disconnect recorded, not a provider failure", evs[0].Err)
	}
	if body := rec.Body.String(); strings.Contains(body, "[DONE]") {
		t.Error("disconnected stream must not emit the success sentinel")
	}
	if !stream.closed {
		t.Error("upstream stream should be closed")
	}
}

func TestChatHandler_UpstreamFailureStillRecordsProviderError(t *testing.T) {
	c, rec := newTestContext(t, http.MethodPost, "/api/studio/chat", `{"message":"hi"}`)
	c.Set("user_id", "user-1")
	c.Set("role", domain.RoleStandard)

	stub := &stubChatService{
		openFn: func(ctx context.Context, input ports.ChatInput) (provider.Stream, error) {
			stream := provider.NewStaticStream([]provider.Chunk{{TextDelta: "x"}}, 0)
			stream.Err = &provider.Error{Status: 503, Message: "model unavailable"}
			return stream, nil
		},
		completeFn: func(ctx context.Context, input ports.ChatInput, outcome ports.StreamOutcome) (*ports.ChatCompletion, error) {
			t.Error("Complete must not run after an upstream failure")
			return nil, nil
		},
	}
	sink := &recordingAudit{}
	h := NewChatHandler(stub, sink, zerolog.Nop())

	if err := h.Chat(c); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	evs := sink.all()
	if len(evs) != 1 || !strings.Contains(evs[0].Err, "model unavailable") {
		t.Errorf("audit events = %+v, want the upstream failure recorded", evs)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"error"`) {
		t.Errorf("missing in-stream error event: %q", body)
	}
}
