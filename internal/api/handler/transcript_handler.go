package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/api/metrics"
	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/core/service"
	"github.com/contentforge/studio-api/internal/relay"
)

// TranscriptHandler owns the upload-transcribe-refine endpoints. The
// transcription stream keeps draining after a client disconnect so the
// finished transcript is persisted either way; the relay policy and the
// partial-save fallback below are what make this the one pipeline that
// survives a dead client.
type TranscriptHandler struct {
	transcripts ports.TranscriptService
	repo        ports.TranscriptRepository
	sink        AuditSink
	log         zerolog.Logger
}

func NewTranscriptHandler(transcripts ports.TranscriptService, repo ports.TranscriptRepository, sink AuditSink, log zerolog.Logger) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts, repo: repo, sink: sink, log: log}
}

type refineRequest struct {
	Kind string `json:"kind" validate:"required,oneof=organize formalize"`
}

// Transcribe accepts multipart audio uploads and streams the transcription
// back as newline-delimited JSON events.
func (h *TranscriptHandler) Transcribe(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	files := form.File["audio"]
	if len(files) == 0 {
		return domain.ErrEmptyUpload
	}

	// Spool uploads to temp files so the provider upload can re-read them.
	// Every exit path below runs the cleanup.
	uploads, cleanup, err := spoolUploads(files)
	if err != nil {
		return err
	}
	defer cleanup()

	// The transcription pipeline outlives its client. Registration, the
	// readiness poll, the stream drain, and persistence all run on a context
	// detached from the request, so a disconnect can neither cancel the
	// provider call nor fail the saving write.
	ctx := context.WithoutCancel(c.Request().Context())
	start := time.Now()

	stream, err := h.transcripts.BeginTranscription(ctx, ports.TranscriptionInput{
		UserID: userID,
		Files:  uploads,
	})
	if err != nil {
		audit(h.sink, userID, service.FeatureTranscribe, 0, start, err)
		return err
	}
	defer stream.Close()

	sess, err := relay.NewSession(c.Response(), h.log)
	if err != nil {
		return err
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	result, err := sess.Relay(ctx, stream, relay.Policy{ContinueOnDisconnect: true})
	if err != nil {
		// With ContinueOnDisconnect only upstream failures land here. Save
		// whatever text made it through before the stream died.
		metrics.StreamOutcomesTotal.WithLabelValues("provider_error").Inc()
		if partial := sess.Accumulated(); partial != "" {
			if _, perr := h.transcripts.SavePartial(ctx, userID, partial); perr != nil {
				h.log.Error().Err(perr).Str("user_id", userID).Msg("partial transcript save failed")
			}
		}
		sess.Fail(err.Error())
		audit(h.sink, userID, service.FeatureTranscribe, 0, start, err)
		return nil
	}

	transcript, err := h.transcripts.Complete(ctx, userID, ports.StreamOutcome{
		Text:      result.Text,
		TokenCost: result.TokenCost,
	})
	if err != nil {
		metrics.StreamOutcomesTotal.WithLabelValues("persist_error").Inc()
		sess.Fail("failed to persist transcript")
		h.log.Error().Err(err).Str("user_id", userID).Msg("transcript completion failed after stream")
		audit(h.sink, userID, service.FeatureTranscribe, 0, start, err)
		return nil
	}

	metrics.StreamOutcomesTotal.WithLabelValues("ok").Inc()
	sess.Finish(transcript)
	audit(h.sink, userID, service.FeatureTranscribe, transcript.TokenCost, start, nil)
	return nil
}

// Get returns one of the caller's transcripts.
func (h *TranscriptHandler) Get(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	transcript, err := h.repo.FindByID(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transcript)
}

// Refine rewrites a stored transcript. The raw content is preserved; only
// the refined fields change.
func (h *TranscriptHandler) Refine(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req refineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	transcript, err := h.transcripts.Refine(c.Request().Context(), ports.RefineInput{
		UserID:       userID,
		TranscriptID: c.Param("id"),
		Kind:         domain.RefinementKind(req.Kind),
	})
	if err != nil {
		audit(h.sink, userID, service.FeatureRefine, 0, start, err)
		return err
	}

	audit(h.sink, userID, service.FeatureRefine, transcript.TokenCost, start, nil)
	return c.JSON(http.StatusOK, transcript)
}

// spoolUploads copies multipart parts to temp files and returns them with a
// single cleanup func covering everything written so far, including on error.
func spoolUploads(files []*multipart.FileHeader) ([]ports.UploadedAudio, func(), error) {
	var uploads []ports.UploadedAudio
	cleanup := func() {
		for _, u := range uploads {
			_ = os.Remove(u.Path)
		}
	}

	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		tmp, err := os.CreateTemp("", "studio-audio-*")
		if err != nil {
			src.Close()
			cleanup()
			return nil, nil, err
		}

		_, err = io.Copy(tmp, src)
		src.Close()
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
			cleanup()
			return nil, nil, err
		}

		mime := fh.Header.Get("Content-Type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		uploads = append(uploads, ports.UploadedAudio{
			Name: fh.Filename,
			MIME: mime,
			Path: tmp.Name(),
		})
	}

	if len(uploads) == 0 {
		return nil, nil, errors.New("no readable uploads")
	}
	return uploads, cleanup, nil
}
