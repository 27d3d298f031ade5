package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/provider"
)

// UploadedAudio references one audio file already spooled to transient
// storage. The caller owns the path and removes it on every exit path.
type UploadedAudio struct {
	Name string
	MIME string
	Path string
}

type TranscriptionInput struct {
	UserID string
	Files  []UploadedAudio
}

type RefineInput struct {
	UserID       string
	TranscriptID string
	Kind         domain.RefinementKind
}

// TranscriptService runs the upload-transcribe-refine pipeline. The streamed
// transcription step is split around the caller's relay loop the same way
// ChatService is.
type TranscriptService interface {
	// BeginTranscription registers the uploads with the provider, waits for
	// file readiness with a bounded poll, and opens the transcription stream.
	BeginTranscription(ctx context.Context, input TranscriptionInput) (provider.Stream, error)
	// Complete parses the title/keyword header out of the accumulated text,
	// persists the transcript, and debits the ledger.
	Complete(ctx context.Context, userID string, outcome StreamOutcome) (*domain.Transcript, error)
	// SavePartial persists whatever text was relayed before the stream died.
	// Partial transcripts still have user value; this is the one pipeline
	// with a best-effort partial save.
	SavePartial(ctx context.Context, userID, text string) (*domain.Transcript, error)
	// Refine rewrites a stored raw transcript, preserving the raw content.
	Refine(ctx context.Context, input RefineInput) (*domain.Transcript, error)
}
