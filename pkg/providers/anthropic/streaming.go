package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mercator-hq/minerva/pkg/providers"
)

// streamReader reads Server-Sent Events (SSE) from Anthropic's streaming
// Messages API. Unlike OpenAI's data-only stream, Anthropic events are typed
// via the SSE event field.
type streamReader struct {
	provider *providers.HTTPProvider
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	state    *streamState
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
		state:    &streamState{provider: provider.GetName()},
	}, nil
}

// Read returns the next meaningful chunk: a text delta or the final chunk
// carrying the stop reason and combined usage. Returns nil, io.EOF when the
// stream ends.
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

		event, err := s.readEvent()
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, io.EOF
		}

		chunk, err := transformStreamEvent(event, s.state)
		if err != nil {
			return nil, err
		}

		if event.Type == "message_stop" {
			return nil, io.EOF
		}

		// Bookkeeping events (message_start, pings, block boundaries)
		// produce no chunk.
		if chunk == nil {
			continue
		}
		return chunk, nil
	}
}

// readEvent reads one complete SSE event. Returns nil, nil at end of stream.
func (s *streamReader) readEvent() (*StreamEvent, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
		// Ignore other SSE fields (id, retry)
	}

	if err := s.scanner.Err(); err != nil {
		return nil, &providers.StreamError{
			Provider: s.provider.GetName(),
			Message:  "failed to read stream",
			Cause:    err,
		}
	}

	if eventType == "" && len(dataLines) == 0 {
		return nil, nil
	}

	var event StreamEvent
	if len(dataLines) > 0 {
		data := strings.Join(dataLines, "\n")
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider.GetName(),
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream event: %w", err),
			}
		}
	}

	// The SSE event field wins when the JSON body lacks a type
	if eventType != "" && event.Type == "" {
		event.Type = eventType
	}

	return &event, nil
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
