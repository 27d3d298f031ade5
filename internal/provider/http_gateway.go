package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxBodyBytes = 8 << 20

// HTTPConfig captures the settings for the HTTP gateway implementation.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// Client defaults to http.DefaultClient when nil.
	Client *http.Client
}

// HTTPGateway talks to a Gemini-style generative API over HTTPS.
type HTTPGateway struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

// NewHTTPGateway validates cfg and returns a ready gateway.
func NewHTTPGateway(cfg HTTPConfig) (*HTTPGateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("provider base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base_url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		client:    client,
	}, nil
}

// --- wire shapes -----------------------------------------------------------

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
	FileData   *wireFileData   `json:"fileData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireFileData struct {
	FileURI string `json:"fileUri"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireCandidate struct {
	Content           wireContent            `json:"content"`
	FinishReason      string                 `json:"finishReason"`
	GroundingMetadata *wireGroundingMetadata `json:"groundingMetadata"`
}

type wireGroundingMetadata struct {
	GroundingChunks []struct {
		Web struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web"`
	} `json:"groundingChunks"`
}

type wireUsage struct {
	TotalTokenCount int64 `json:"totalTokenCount"`
}

type wireResponse struct {
	Candidates    []wireCandidate `json:"candidates"`
	UsageMetadata *wireUsage      `json:"usageMetadata"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func buildPayload(req Request) map[string]any {
	contents := make([]wireContent, 0, len(req.History)+1)
	for _, m := range req.History {
		role := m.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, wireContent{Role: role, Parts: []wirePart{{Text: m.Content}}})
	}

	parts := make([]wirePart, 0, 1+len(req.Attachments)+len(req.FileIDs))
	if req.Prompt != "" {
		parts = append(parts, wirePart{Text: req.Prompt})
	}
	for _, a := range req.Attachments {
		parts = append(parts, wirePart{InlineData: &wireInlineData{
			MIMEType: a.MIME,
			Data:     base64.StdEncoding.EncodeToString(a.Data),
		}})
	}
	for _, id := range req.FileIDs {
		parts = append(parts, wirePart{FileData: &wireFileData{FileURI: id}})
	}
	contents = append(contents, wireContent{Role: "user", Parts: parts})

	genCfg := map[string]any{}
	if req.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = req.MaxTokens
	}
	if req.ImageOutput {
		genCfg["responseModalities"] = []string{"TEXT", "IMAGE"}
		if req.AspectRatio != "" {
			genCfg["imageConfig"] = map[string]any{"aspectRatio": req.AspectRatio}
		}
	}

	payload := map[string]any{"contents": contents}
	if len(genCfg) > 0 {
		payload["generationConfig"] = genCfg
	}
	if sys := strings.TrimSpace(req.System); sys != "" {
		payload["systemInstruction"] = wireContent{Parts: []wirePart{{Text: sys}}}
	}
	if req.SearchEnabled {
		payload["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}
	return payload
}

func (g *HTTPGateway) newJSONRequest(ctx context.Context, urlStr string, payload any) (*http.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")
	if g.userAgent != "" {
		httpReq.Header.Set("user-agent", g.userAgent)
	}
	if g.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
	}
	return httpReq, nil
}

// upstreamError converts a non-2xx body into *Error. Cost is only trusted
// when the provider reports usage alongside the failure.
func upstreamError(status int, body []byte) *Error {
	var we wireError
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &we); err == nil && we.Error.Message != "" {
		msg = we.Error.Message
	}
	e := &Error{Status: status, Message: msg}
	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err == nil && wr.UsageMetadata != nil {
		e.CostIncurred = wr.UsageMetadata.TotalTokenCount
	}
	return e
}

// Generate performs a single blocking invocation.
func (g *HTTPGateway) Generate(ctx context.Context, req Request) (*Response, error) {
	urlStr := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model))
	httpReq, err := g.newJSONRequest(ctx, urlStr, buildPayload(req))
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp.StatusCode, body)
	}

	var out wireResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(out.Candidates) == 0 {
		return nil, &Error{Message: "empty candidates"}
	}

	result := &Response{}
	c := out.Candidates[0]
	var text strings.Builder
	for _, p := range c.Content.Parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.InlineData != nil && result.ImageData == "" {
			result.ImageData = p.InlineData.Data
			result.ImageMIME = p.InlineData.MIMEType
		}
	}
	result.Text = text.String()
	result.Grounding = convertGrounding(c.GroundingMetadata)
	if out.UsageMetadata != nil {
		result.TokenCost = out.UsageMetadata.TotalTokenCount
	}
	return result, nil
}

func convertGrounding(gm *wireGroundingMetadata) *GroundingMetadata {
	if gm == nil || len(gm.GroundingChunks) == 0 {
		return nil
	}
	md := &GroundingMetadata{}
	for _, gc := range gm.GroundingChunks {
		if gc.Web.URI == "" {
			continue
		}
		md.Sources = append(md.Sources, Source{Title: gc.Web.Title, URL: gc.Web.URI})
	}
	if len(md.Sources) == 0 {
		return nil
	}
	return md
}

// Stream opens a streaming invocation. The returned Stream reads lazily from
// the response body; nothing is buffered ahead of Recv.
func (g *HTTPGateway) Stream(ctx context.Context, req Request) (Stream, error) {
	urlStr := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", g.baseURL, url.PathEscape(req.Model))
	httpReq, err := g.newJSONRequest(ctx, urlStr, buildPayload(req))
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		return nil, upstreamError(resp.StatusCode, body)
	}

	return &httpStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// httpStream pulls server-sent "data:" lines off the response body, one
// chunk per Recv call.
type httpStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	cost     int64
	doneSent bool
	closed   bool
}

func (s *httpStream) Recv() (Chunk, error) {
	if s.doneSent {
		return Chunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var out wireResponse
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			return Chunk{}, &Error{Message: fmt.Sprintf("decode stream chunk: %v", err)}
		}
		if out.UsageMetadata != nil && out.UsageMetadata.TotalTokenCount > 0 {
			s.cost = out.UsageMetadata.TotalTokenCount
		}
		if len(out.Candidates) == 0 {
			continue
		}

		chunk := Chunk{Grounding: convertGrounding(out.Candidates[0].GroundingMetadata)}
		for _, p := range out.Candidates[0].Content.Parts {
			chunk.TextDelta += p.Text
		}
		if chunk.TextDelta == "" && chunk.Grounding == nil {
			continue
		}
		return chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		// Network drop mid-stream. The cost actually incurred upstream is
		// unknowable here, so report zero rather than overcharge.
		return Chunk{}, &Error{Message: err.Error()}
	}

	s.doneSent = true
	return Chunk{Done: true, TokenCost: s.cost}, nil
}

func (s *httpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// --- file API --------------------------------------------------------------

type wireFile struct {
	File struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		State string `json:"state"`
	} `json:"file"`
}

func fileStateFromWire(state string) FileState {
	switch state {
	case "ACTIVE":
		return FileReady
	case "FAILED":
		return FileFailed
	default:
		return FileProcessing
	}
}

// UploadFile registers a binary with the provider's bulk-file API and returns
// its handle. The file usually starts out in the processing state; callers
// poll FileState until it becomes ready.
func (g *HTTPGateway) UploadFile(ctx context.Context, name, mime string, r io.Reader) (*FileHandle, error) {
	urlStr := g.baseURL + "/upload/v1beta/files"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, r)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", mime)
	httpReq.Header.Set("x-goog-upload-file-name", name)
	if g.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp.StatusCode, body)
	}

	var out wireFile
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decode file response: %v", err)}
	}
	return &FileHandle{
		ID:    out.File.Name,
		URI:   out.File.URI,
		State: fileStateFromWire(out.File.State),
	}, nil
}

// FileState reports the current readiness of a registered file.
func (g *HTTPGateway) FileState(ctx context.Context, id string) (FileState, error) {
	urlStr := fmt.Sprintf("%s/v1beta/%s", g.baseURL, id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", err
	}
	if g.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp.StatusCode, body)
	}

	var out struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Message: fmt.Sprintf("decode file state: %v", err)}
	}
	return fileStateFromWire(out.State), nil
}
