package provider

import (
	"context"
	"io"
)

// MockGateway is a function-field test double for Gateway. Unset fields
// return empty successful results.
type MockGateway struct {
	GenerateFunc   func(ctx context.Context, req Request) (*Response, error)
	StreamFunc     func(ctx context.Context, req Request) (Stream, error)
	UploadFileFunc func(ctx context.Context, name, mime string, r io.Reader) (*FileHandle, error)
	FileStateFunc  func(ctx context.Context, id string) (FileState, error)
}

func (m *MockGateway) Generate(ctx context.Context, req Request) (*Response, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &Response{}, nil
}

func (m *MockGateway) Stream(ctx context.Context, req Request) (Stream, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return NewStaticStream(nil, 0), nil
}

func (m *MockGateway) UploadFile(ctx context.Context, name, mime string, r io.Reader) (*FileHandle, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, name, mime, r)
	}
	return &FileHandle{ID: "files/mock", State: FileReady}, nil
}

func (m *MockGateway) FileState(ctx context.Context, id string) (FileState, error) {
	if m.FileStateFunc != nil {
		return m.FileStateFunc(ctx, id)
	}
	return FileReady, nil
}

// StaticStream replays a fixed chunk sequence followed by a terminal chunk.
type StaticStream struct {
	chunks []Chunk
	cost   int64
	pos    int
	done   bool
	Closed bool
	// Err, when set, is returned after the fixed chunks instead of the
	// terminal chunk.
	Err error
}

// NewStaticStream returns a stream yielding chunks then Done with cost.
func NewStaticStream(chunks []Chunk, cost int64) *StaticStream {
	return &StaticStream{chunks: chunks, cost: cost}
}

func (s *StaticStream) Recv() (Chunk, error) {
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.Err != nil {
		return Chunk{}, s.Err
	}
	if !s.done {
		s.done = true
		return Chunk{Done: true, TokenCost: s.cost}, nil
	}
	return Chunk{}, io.EOF
}

func (s *StaticStream) Close() error {
	s.Closed = true
	return nil
}
