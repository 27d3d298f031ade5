// Package relay turns a provider chunk stream into the line-oriented event
// protocol consumed by the browser, while accumulating the full text for
// persistence. It only needs an io.Writer plus a flush hook, so the wire
// logic stays independent of any particular transport.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/provider"
)

// State is the lifecycle of one relay session.
type State int

const (
	StateOpen State = iota
	StateReceiving
	StateClosingOK
	StateClosingError
	StateClosed
)

// ErrClientGone reports that the client connection died mid-stream and the
// operation's policy does not keep the upstream call alive.
var ErrClientGone = errors.New("relay: client disconnected")

// Policy controls per-operation relay behavior.
type Policy struct {
	// ContinueOnDisconnect keeps draining the upstream stream after the
	// client connection dies, for pipelines whose persistence step does not
	// depend on further client interaction. It also disarms the relay
	// context's cancellation, so the caller must pass a context that is not
	// tied to the client connection alongside it.
	ContinueOnDisconnect bool
}

// Result is what a fully drained stream produced.
type Result struct {
	Text       string
	Grounding  *provider.GroundingMetadata
	TokenCost  int64
	ClientGone bool
}

type deltaEvent struct {
	TextDelta string `json:"text_delta"`
}

type groundingEvent struct {
	Grounding *provider.GroundingMetadata `json:"grounding"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// Session relays one in-flight streamed operation to one client connection.
// Not safe for concurrent use; a session lives on a single request goroutine.
type Session struct {
	w          io.Writer
	flush      func()
	log        zerolog.Logger
	state      State
	buf        []byte
	grounding  *provider.GroundingMetadata
	clientGone bool
}

// NewSession sends the persistent-stream headers and returns an open session.
// It fails when the transport cannot flush incrementally.
func NewSession(w http.ResponseWriter, log zerolog.Logger) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("relay: response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "application/x-ndjson; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Session{w: w, flush: flusher.Flush, log: log, state: StateOpen}, nil
}

// newSessionRaw exists for tests that need a bare writer.
func newSessionRaw(w io.Writer, flush func(), log zerolog.Logger) *Session {
	if flush == nil {
		flush = func() {}
	}
	return &Session{w: w, flush: flush, log: log, state: StateOpen}
}

// Relay pumps chunks from stream to the client until the terminal chunk or
// an error. Events are forwarded in arrival order, each flushed immediately;
// text deltas are concatenated into the accumulation buffer and the latest
// grounding metadata wins. On success the session is left in CLOSING_OK and
// the caller decides the terminal event via Finish or Fail, so a failed
// persistence step can still withhold the success marker.
func (s *Session) Relay(ctx context.Context, stream provider.Stream, policy Policy) (*Result, error) {
	s.state = StateReceiving

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Upstream ended without an explicit terminal chunk; treat
				// as done with whatever was accumulated and zero cost.
				s.state = StateClosingOK
				return s.result(0), nil
			}
			s.state = StateClosingError
			return nil, err
		}

		if chunk.Done {
			s.state = StateClosingOK
			return s.result(chunk.TokenCost), nil
		}

		if chunk.TextDelta != "" {
			s.buf = append(s.buf, chunk.TextDelta...)
			s.writeEvent(deltaEvent{TextDelta: chunk.TextDelta})
		}
		if chunk.Grounding != nil {
			s.grounding = chunk.Grounding
			s.writeEvent(groundingEvent{Grounding: chunk.Grounding})
		}

		if policy.ContinueOnDisconnect {
			continue
		}
		if s.clientGone {
			_ = stream.Close()
			s.state = StateClosingError
			return nil, ErrClientGone
		}
		select {
		case <-ctx.Done():
			_ = stream.Close()
			s.state = StateClosingError
			return nil, ErrClientGone
		default:
		}
	}
}

// Finish emits the terminal event followed by the stream-termination
// sentinel, then closes the session.
func (s *Session) Finish(payload any) {
	s.state = StateClosingOK
	s.writeEvent(payload)
	if !s.clientGone {
		if _, err := fmt.Fprint(s.w, "[DONE]\n"); err == nil {
			s.flush()
		}
	}
	s.state = StateClosed
}

// Fail emits a single error event and closes the session. The success
// sentinel is deliberately withheld so the client never mistakes a failed
// operation for a persisted one.
func (s *Session) Fail(msg string) {
	s.state = StateClosingError
	s.writeEvent(errorEvent{Error: msg})
	s.state = StateClosed
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// ClientGone reports whether a write to the client has failed.
func (s *Session) ClientGone() bool { return s.clientGone }

// Accumulated returns the text relayed so far. Used by pipelines that save
// partial output after a failure.
func (s *Session) Accumulated() string { return string(s.buf) }

func (s *Session) result(cost int64) *Result {
	return &Result{
		Text:       string(s.buf),
		Grounding:  s.grounding,
		TokenCost:  cost,
		ClientGone: s.clientGone,
	}
}

// writeEvent marshals v onto one line and flushes it. A failed write marks
// the client gone; the failure is swallowed, never retried.
func (s *Session) writeEvent(v any) {
	if s.clientGone {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("relay: event marshal failed")
		return
	}
	if _, err := fmt.Fprintf(s.w, "%s\n\n", data); err != nil {
		s.clientGone = true
		s.log.Debug().Err(err).Msg("relay: client write failed, suppressing further writes")
		return
	}
	s.flush()
}
