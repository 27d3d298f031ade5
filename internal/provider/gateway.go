// Package provider abstracts the generative-AI backend: send a prompt plus
// optional attachments, get back either a complete response or a lazy stream
// of chunks. Callers never see provider wire formats.
package provider

import (
	"context"
	"io"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Attachment is an inline binary payload sent with a request.
type Attachment struct {
	MIME string
	Data []byte
}

// Request describes a single provider invocation.
type Request struct {
	Model       string
	Prompt      string
	System      string
	History     []Message
	Attachments []Attachment
	// FileIDs reference files previously registered via UploadFile.
	FileIDs       []string
	SearchEnabled bool
	ImageOutput   bool
	AspectRatio   string
	MaxTokens     int
}

// Source is one retrieval citation reported by the provider.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// GroundingMetadata carries the citations backing a search-grounded response.
type GroundingMetadata struct {
	Sources []Source `json:"sources"`
}

// Response is a complete, non-streamed provider result.
type Response struct {
	Text      string
	ImageData string // base64-encoded when ImageOutput was requested
	ImageMIME string
	Grounding *GroundingMetadata
	TokenCost int64
}

// Chunk is one incremental unit of a streamed response. The terminal chunk
// has Done set and carries the provider's reported cost; no further chunks
// follow it.
type Chunk struct {
	TextDelta string
	Grounding *GroundingMetadata
	Done      bool
	TokenCost int64
}

// Stream is a pull-based iterator over chunks. Recv returns io.EOF after the
// terminal chunk has been consumed. A stream cannot be replayed.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// FileState is the provider-side readiness of an uploaded file.
type FileState string

const (
	FileProcessing FileState = "processing"
	FileReady      FileState = "ready"
	FileFailed     FileState = "failed"
)

// FileHandle references a file registered with the provider's bulk-file API.
type FileHandle struct {
	ID    string
	URI   string
	State FileState
}

// Gateway is the single entry point to the generative backend.
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (Stream, error)
	UploadFile(ctx context.Context, name, mime string, r io.Reader) (*FileHandle, error)
	FileState(ctx context.Context, id string) (FileState, error)
}
