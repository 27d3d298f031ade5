package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/provider"
	"github.com/contentforge/studio-api/internal/textparse"
)

const transcribePrompt = "Transcribe the attached audio in full. Begin your answer with a TITLE: line " +
	"and a KEYWORDS: line (comma separated), followed by a blank line and the transcription text."

// TranscriptConfig bounds the file-readiness poll loop.
type TranscriptConfig struct {
	Model        string
	PollInterval time.Duration
	PollAttempts int
}

// TranscriptService runs the upload-transcribe-refine pipeline.
type TranscriptService struct {
	gateway     provider.Gateway
	transcripts ports.TranscriptRepository
	ledger      ports.LedgerService
	cfg         TranscriptConfig
	logger      zerolog.Logger
}

func NewTranscriptService(gateway provider.Gateway, transcripts ports.TranscriptRepository, ledger ports.LedgerService, cfg TranscriptConfig, logger zerolog.Logger) *TranscriptService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	return &TranscriptService{gateway: gateway, transcripts: transcripts, ledger: ledger, cfg: cfg, logger: logger}
}

// BeginTranscription registers the uploaded audio with the provider's file
// API, waits for every file to become ready, and opens the transcription
// stream. A file that never becomes ready within the poll budget is a
// reported error, not an infinite wait.
func (s *TranscriptService) BeginTranscription(ctx context.Context, input ports.TranscriptionInput) (provider.Stream, error) {
	if len(input.Files) == 0 {
		return nil, domain.ErrEmptyUpload
	}

	fileIDs := make([]string, 0, len(input.Files))
	for _, f := range input.Files {
		handle, err := s.registerFile(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := s.awaitReady(ctx, handle); err != nil {
			return nil, err
		}
		fileIDs = append(fileIDs, handle.ID)
	}

	stream, err := s.gateway.Stream(ctx, provider.Request{
		Model:   s.cfg.Model,
		Prompt:  transcribePrompt,
		FileIDs: fileIDs,
	})
	observeProvider("stream", err)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *TranscriptService) registerFile(ctx context.Context, f ports.UploadedAudio) (*provider.FileHandle, error) {
	r, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", f.Name, err)
	}
	defer r.Close()

	handle, err := s.gateway.UploadFile(ctx, f.Name, f.MIME, r)
	observeProvider("upload", err)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// awaitReady polls with a fixed delay until the file is ready, fails, or the
// attempt budget runs out.
func (s *TranscriptService) awaitReady(ctx context.Context, handle *provider.FileHandle) error {
	if handle.State == provider.FileReady {
		return nil
	}

	for attempt := 0; attempt < s.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}

		state, err := s.gateway.FileState(ctx, handle.ID)
		observeProvider("file_state", err)
		if err != nil {
			return err
		}
		switch state {
		case provider.FileReady:
			return nil
		case provider.FileFailed:
			return fmt.Errorf("provider rejected file %s", handle.ID)
		}
	}

	s.logger.Warn().Str("file_id", handle.ID).Int("attempts", s.cfg.PollAttempts).Msg("file readiness poll budget exhausted")
	return fmt.Errorf("%w: %s", domain.ErrFileNotReady, handle.ID)
}

// Complete parses the header out of the accumulated stream text, persists
// the transcript, and debits the reported cost.
func (s *TranscriptService) Complete(ctx context.Context, userID string, outcome ports.StreamOutcome) (*domain.Transcript, error) {
	title, keywords, body := textparse.TitledBody(outcome.Text)
	if title == "" {
		title = defaultTranscriptTitle()
	}

	now := time.Now().UTC()
	tr := &domain.Transcript{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Keywords:   keywords,
		RawContent: body,
		TokenCost:  outcome.TokenCost,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.transcripts.Create(ctx, tr); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("transcript persistence failed")
		return nil, fmt.Errorf("persist transcript: %w", err)
	}

	if _, err := s.ledger.Debit(ctx, userID, FeatureTranscribe, outcome.TokenCost); err != nil {
		return nil, err
	}
	return tr, nil
}

// SavePartial persists whatever text was relayed before the stream died.
// The stream never reported a cost, so the operation is logged at zero
// rather than guessed.
func (s *TranscriptService) SavePartial(ctx context.Context, userID, text string) (*domain.Transcript, error) {
	now := time.Now().UTC()
	tr := &domain.Transcript{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      defaultTranscriptTitle() + " (partial)",
		RawContent: text,
		Partial:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.transcripts.Create(ctx, tr); err != nil {
		return nil, fmt.Errorf("persist partial transcript: %w", err)
	}

	if _, err := s.ledger.Debit(ctx, userID, FeatureTranscribe, 0); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("zero-cost usage log failed for partial transcript")
	}

	s.logger.Info().Str("transcript_id", tr.ID).Str("user_id", userID).Int("bytes", len(text)).Msg("partial transcript saved")
	return tr, nil
}

// Refine rewrites the stored raw transcript and persists the result in the
// refined field only, so the raw content stays recoverable for a different
// refinement later.
func (s *TranscriptService) Refine(ctx context.Context, input ports.RefineInput) (*domain.Transcript, error) {
	if !domain.ValidRefinement(input.Kind) {
		return nil, domain.ErrInvalidRefinement
	}

	tr, err := s.transcripts.FindByID(ctx, input.TranscriptID, input.UserID)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Generate(ctx, provider.Request{
		Model:  s.cfg.Model,
		Prompt: refinePrompt(input.Kind, tr.RawContent),
	})
	observeProvider("generate", err)
	if err != nil {
		return nil, err
	}

	if err := s.transcripts.UpdateRefinement(ctx, tr.ID, input.UserID, input.Kind, resp.Text); err != nil {
		s.logger.Error().Err(err).Str("transcript_id", tr.ID).Msg("refinement persistence failed")
		return nil, fmt.Errorf("persist refinement: %w", err)
	}

	if _, err := s.ledger.Debit(ctx, input.UserID, FeatureRefine, resp.TokenCost); err != nil {
		return nil, err
	}

	tr.RefinedContent = resp.Text
	tr.RefinementKind = input.Kind
	tr.UpdatedAt = time.Now().UTC()
	return tr, nil
}

func refinePrompt(kind domain.RefinementKind, raw string) string {
	switch kind {
	case domain.RefineFormalize:
		return "Rewrite the following transcript in formal written prose, fixing grammar and removing filler words. " +
			"Preserve every substantive statement.\n\n" + raw
	default: // organize
		return "Reorganize the following transcript into clearly structured sections with headings, " +
			"keeping the original wording wherever possible.\n\n" + raw
	}
}

func defaultTranscriptTitle() string {
	return "Transcription " + time.Now().UTC().Format("2006-01-02 15:04")
}
