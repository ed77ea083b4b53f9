package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mercator-hq/minerva/pkg/providers"
)

// streamReader reads Server-Sent Events (SSE) from an OpenAI-compatible
// streaming endpoint.
type streamReader struct {
	provider *providers.HTTPProvider
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool
}

// newStreamReader starts a streaming request and wraps its body.
func newStreamReader(ctx context.Context, provider *providers.HTTPProvider, url string, payload interface{}, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := provider.DoRequest(ctx, "POST", url, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		provider: provider,
		resp:     resp.Body,
		scanner:  bufio.NewScanner(resp.Body),
	}, nil
}

// Read returns the next meaningful chunk from the stream: a content delta, a
// finish-reason chunk, or the final usage-only chunk. Role-only and empty
// chunks are skipped. Returns nil, io.EOF when the stream ends.
func (s *streamReader) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &providers.StreamError{
					Provider: s.provider.GetName(),
					Message:  "failed to read stream",
					Cause:    err,
				}
			}
			return nil, io.EOF
		}

		line := s.scanner.Text()
		if line == "" {
			continue
		}

		// Skip non-data lines (comments, event types)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return nil, io.EOF
		}

		var wireChunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &wireChunk); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider.GetName(),
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}

		chunk := transformStreamChunk(&wireChunk)
		if chunk.Delta == "" && chunk.FinishReason == "" && chunk.Usage == nil {
			continue
		}
		return chunk, nil
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
