package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/api/metrics"
	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/core/service"
	"github.com/contentforge/studio-api/internal/provider"
	"github.com/contentforge/studio-api/internal/relay"
)

// ChatHandler owns the streaming chat endpoint. The handler drives the relay
// session between the service's OpenStream and Complete steps: the service
// never sees the transport, and the success sentinel is only written after
// persistence and billing succeed.
type ChatHandler struct {
	chat ports.ChatService
	sink AuditSink
	log  zerolog.Logger
}

func NewChatHandler(chat ports.ChatService, sink AuditSink, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sink: sink, log: log}
}

type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required"`
}

type chatAttachment struct {
	MIME string `json:"mime" validate:"required"`
	Data string `json:"data" validate:"required"` // base64
}

type chatRequest struct {
	Message       string           `json:"message" validate:"required,max=32000"`
	History       []chatMessage    `json:"history,omitempty" validate:"omitempty,dive"`
	Model         string           `json:"model,omitempty" validate:"omitempty,oneof=standard premium"`
	SearchEnabled bool             `json:"search_enabled,omitempty"`
	Attachments   []chatAttachment `json:"attachments,omitempty" validate:"omitempty,max=8,dive"`
}

// Chat streams a model reply as newline-delimited JSON events, terminated by
// the [DONE] sentinel once the message is persisted and billed.
func (h *ChatHandler) Chat(c echo.Context) error {
	userID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input := ports.ChatInput{
		UserID:        userID,
		UserRole:      role,
		Message:       req.Message,
		ModelSelector: req.Model,
		SearchEnabled: req.SearchEnabled,
	}
	if input.ModelSelector == "" {
		input.ModelSelector = ports.ModelSelectorStandard
	}
	for _, m := range req.History {
		input.History = append(input.History, provider.Message{Role: m.Role, Content: m.Content})
	}
	for _, a := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "attachment data must be base64")
		}
		input.Attachments = append(input.Attachments, provider.Attachment{MIME: a.MIME, Data: data})
	}

	ctx := c.Request().Context()
	start := time.Now()

	// Failures before the first byte still go through the regular JSON error
	// path; only after NewSession commits the response does error reporting
	// switch to in-stream events.
	stream, err := h.chat.OpenStream(ctx, input)
	if err != nil {
		audit(h.sink, userID, service.FeatureChat, 0, start, err)
		return err
	}
	defer stream.Close()

	sess, err := relay.NewSession(c.Response(), h.log)
	if err != nil {
		return err
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	result, err := sess.Relay(ctx, stream, relay.Policy{})
	if err != nil {
		// A dead client surfaces either as the relay's own ErrClientGone or
		// as an upstream error caused by the request context's cancellation
		// propagating into the provider call. Both are disconnects, not
		// provider failures.
		if errors.Is(err, relay.ErrClientGone) || ctx.Err() != nil {
			metrics.StreamOutcomesTotal.WithLabelValues("client_gone").Inc()
			audit(h.sink, userID, service.FeatureChat, 0, start, relay.ErrClientGone)
			return nil
		}
		metrics.StreamOutcomesTotal.WithLabelValues("provider_error").Inc()
		sess.Fail(err.Error())
		audit(h.sink, userID, service.FeatureChat, 0, start, err)
		return nil
	}

	completion, err := h.chat.Complete(ctx, input, ports.StreamOutcome{
		Text:      result.Text,
		Grounding: result.Grounding,
		TokenCost: result.TokenCost,
	})
	if err != nil {
		// Persistence or billing failed: withhold the success sentinel.
		metrics.StreamOutcomesTotal.WithLabelValues("persist_error").Inc()
		sess.Fail("failed to persist message")
		h.log.Error().Err(err).Str("user_id", userID).Msg("chat completion failed after stream")
		audit(h.sink, userID, service.FeatureChat, 0, start, err)
		return nil
	}

	metrics.StreamOutcomesTotal.WithLabelValues("ok").Inc()
	sess.Finish(completion)
	audit(h.sink, userID, service.FeatureChat, completion.TokenCost, start, nil)
	return nil
}
