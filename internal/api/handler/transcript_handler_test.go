package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
)

type stubTranscriptService struct {
	beginFn       func(ctx context.Context, input ports.TranscriptionInput) (provider.Stream, error)
	completeFn    func(ctx context.Context, userID string, outcome ports.StreamOutcome) (*domain.Transcript, error)
	savePartialFn func(ctx context.Context, userID, text string) (*domain.Transcript, error)
	refineFn      func(ctx context.Context, input ports.RefineInput) (*domain.Transcript, error)
}

func (s *stubTranscriptService) BeginTranscription(ctx context.Context, input ports.TranscriptionInput) (provider.Stream, error) {
	return s.beginFn(ctx, input)
}

func (s *stubTranscriptService) Complete(ctx context.Context, userID string, outcome ports.StreamOutcome) (*domain.Transcript, error) {
	return s.completeFn(ctx, userID, outcome)
}

func (s *stubTranscriptService) SavePartial(ctx context.Context, userID, text string) (*domain.Transcript, error) {
	return s.savePartialFn(ctx, userID, text)
}

func (s *stubTranscriptService) Refine(ctx context.Context, input ports.RefineInput) (*domain.Transcript, error) {
	return s.refineFn(ctx, input)
}

// recordingAudit collects events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []ports.OperationEvent
}

func (r *recordingAudit) Enqueue(ev ports.OperationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingAudit) all() []ports.OperationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.OperationEvent(nil), r.events...)
}

// newUploadContext builds a multipart transcription request carrying one
// audio file, with authenticated claims already set.
func newUploadContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "memo.ogg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("not really audio")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/api/studio/transcripts", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	c.Set("role", domain.RoleStandard)
	return c, rec
}

// A transcription must finish even when the client hangs up mid-stream: the
// provider call, the drain, and the persistence write all run on a context
// detached from the request.
func TestTranscriptHandler_Transcribe_SurvivesCancelledRequest(t *testing.T) {
	c, rec := newUploadContext(t)

	// Simulate the disconnect: the request context is already cancelled
	// before the handler runs.
	ctx, cancel := context.WithCancel(c.Request().Context())
	cancel()
	c.SetRequest(c.Request().WithContext(ctx))

	var completed *ports.StreamOutcome
	stub := &stubTranscriptService{
		beginFn: func(ctx context.Context, input ports.TranscriptionInput) (provider.Stream, error) {
			if ctx.Err() != nil {
				t.Errorf("provider call received a cancelled context: %v", ctx.Err())
			}
			if len(input.Files) != 1 || input.Files[0].Name != "memo.ogg" {
				t.Errorf("unexpected uploads: %+v", input.Files)
			}
			return provider.NewStaticStream([]provider.Chunk{
				{TextDelta: "one "},
				{TextDelta: "two"},
			}, 11), nil
		},
		completeFn: func(ctx context.Context, userID string, outcome ports.StreamOutcome) (*domain.Transcript, error) {
			if ctx.Err() != nil {
				t.Errorf("persistence received a cancelled context: %v", ctx.Err())
			}
			completed = &outcome
			return &domain.Transcript{ID: "tr-1", UserID: userID, RawContent: outcome.Text, TokenCost: outcome.TokenCost}, nil
		},
	}
	sink := &recordingAudit{}
	h := NewTranscriptHandler(stub, nil, sink, zerolog.Nop())

	if err := h.Transcribe(c); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if completed == nil {
		t.Fatal("transcript was never persisted")
	}
	if completed.Text != "one two" {
		t.Errorf("persisted text = %q, want the full upstream output", completed.Text)
	}
	if completed.TokenCost != 11 {
		t.Errorf("persisted cost = %d, want 11", completed.TokenCost)
	}
	if body := rec.Body.String(); !strings.HasSuffix(body, "[DONE]\n") {
		t.Errorf("stream not terminated by sentinel: %q", body)
	}

	evs := sink.all()
	if len(evs) != 1 || evs[0].Err != "" || evs[0].TokenCost != 11 {
		t.Errorf("audit events = %+v, want one success with cost 11", evs)
	}
}

func TestTranscriptHandler_Transcribe_SavesPartialOnUpstreamFailure(t *testing.T) {
	c, rec := newUploadContext(t)

	var savedPartial string
	stub := &stubTranscriptService{
		beginFn: func(ctx context.Context, input ports.TranscriptionInput) (provider.Stream, error) {
			stream := provider.NewStaticStream([]provider.Chunk{{TextDelta: "half a "}}, 0)
			stream.Err = &provider.Error{Status: 503, Message: "model unavailable"}
			return stream, nil
		},
		completeFn: func(ctx context.Context, userID string, outcome ports.StreamOutcome) (*domain.Transcript, error) {
			t.Error("Complete must not run after an upstream failure")
			return nil, nil
		},
		savePartialFn: func(ctx context.Context, userID, text string) (*domain.Transcript, error) {
			savedPartial = text
			return &domain.Transcript{ID: "tr-2", UserID: userID, RawContent: text, Partial: true}, nil
		},
	}
	sink := &recordingAudit{}
	h := NewTranscriptHandler(stub, nil, sink, zerolog.Nop())

	if err := h.Transcribe(c); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if savedPartial != "half a " {
		t.Errorf("partial = %q", savedPartial)
	}
	if body := rec.Body.String(); strings.Contains(body, "[DONE]") {
		t.Error("failed stream must not emit the success sentinel")
	}
}
