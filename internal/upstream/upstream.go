// Package upstream provides a scriptable stand-in for an LLM backend.
// It speaks the chat completions, Responses and Anthropic messages wire
// formats, so provider adapters and full-server tests can run against it
// without network access. Replies are served from a scripted queue;
// reasoning loops are driven by enqueuing one reply per expected call.
package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Usage is the token accounting attached to a reply.
type Usage struct {
	Input     int
	Output    int
	Cached    int
	Reasoning int
}

// Reply is one scripted backend answer.
type Reply struct {
	// Content is the assistant text. Verification stages expect a JSON
	// verdict object here.
	Content string

	// FinishReason defaults to "stop".
	FinishReason string

	// Status, when not 2xx, makes the call fail with an error envelope.
	// Zero means 200.
	Status int

	// ErrorMessage is the error envelope text for failing replies.
	ErrorMessage string

	// Delay is slept before answering, to exercise timeouts.
	Delay time.Duration

	// Usage overrides the default 10 input / 20 output accounting.
	Usage *Usage
}

// Request is one captured backend call.
type Request struct {
	Path  string
	Model string
	Body  map[string]interface{}
}

// Server is the fake backend. Point a provider's base URL at URL().
type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	script   []Reply
	requests []Request

	// defaultContent answers calls that outrun the script.
	defaultContent string
}

// New starts a fake backend answering every call with "ok" until a script
// is enqueued.
func New() *Server {
	s := &Server{defaultContent: "ok"}
	s.ts = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL, suitable for a provider's base_url. Chat
// completions live at URL()/chat/completions, so pass URL() directly for
// openai-type providers and anthropic-type providers alike.
func (s *Server) URL() string {
	return s.ts.URL
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.ts.Close()
}

// Enqueue appends replies to the script. Replies are consumed in order,
// one per call, across all endpoints.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, replies...)
}

// SetDefault changes the answer for calls that outrun the script.
func (s *Server) SetDefault(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultContent = content
}

// Requests returns a copy of the captured calls, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CallCount returns how many calls the backend has received.
func (s *Server) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Reset drops the script and the captured calls.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = nil
	s.requests = nil
}

// next pops the next scripted reply, falling back to the default.
func (s *Server) next() Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) > 0 {
		reply := s.script[0]
		s.script = s.script[1:]
		return reply
	}
	return Reply{Content: s.defaultContent}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	model, _ := body["model"].(string)
	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: r.URL.Path, Model: model, Body: body})
	s.mu.Unlock()

	reply := s.next()
	if reply.Delay > 0 {
		time.Sleep(reply.Delay)
	}
	if reply.FinishReason == "" {
		reply.FinishReason = "stop"
	}
	if reply.Usage == nil {
		reply.Usage = &Usage{Input: 10, Output: 20}
	}

	if reply.Status != 0 && (reply.Status < 200 || reply.Status > 299) {
		writeError(w, reply)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		if stream, _ := body["stream"].(bool); stream {
			s.streamChat(w, model, reply)
			return
		}
		writeJSON(w, chatCompletion(model, reply))
	case strings.HasSuffix(r.URL.Path, "/responses"):
		writeJSON(w, responsesResult(model, reply))
	case strings.HasSuffix(r.URL.Path, "/messages"):
		writeJSON(w, anthropicMessage(model, reply))
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, reply Reply) {
	message := reply.ErrorMessage
	if message == "" {
		message = http.StatusText(reply.Status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "api_error",
		},
	})
}

// chatCompletion builds a chat completions response body.
func chatCompletion(model string, reply Reply) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": reply.Content,
				},
				"finish_reason": reply.FinishReason,
			},
		},
		"usage": chatUsage(reply.Usage),
	}
}

// responsesResult builds a Responses API body with one message item.
func responsesResult(model string, reply Reply) map[string]interface{} {
	return map[string]interface{}{
		"id":         fmt.Sprintf("resp_%d", time.Now().UnixNano()),
		"object":     "response",
		"created_at": time.Now().Unix(),
		"model":      model,
		"status":     "completed",
		"output": []map[string]interface{}{
			{
				"type": "message",
				"role": "assistant",
				"content": []map[string]interface{}{
					{"type": "output_text", "text": reply.Content},
				},
			},
		},
		"usage": responsesUsage(reply.Usage),
	}
}

// anthropicMessage builds an Anthropic messages body.
func anthropicMessage(model string, reply Reply) map[string]interface{} {
	stopReason := "end_turn"
	if reply.FinishReason == "length" {
		stopReason = "max_tokens"
	}
	return map[string]interface{}{
		"id":   "msg_fake",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{"type": "text", "text": reply.Content},
		},
		"model":       model,
		"stop_reason": stopReason,
		"usage": map[string]interface{}{
			"input_tokens":                reply.Usage.Input,
			"output_tokens":               reply.Usage.Output,
			"cache_read_input_tokens":     reply.Usage.Cached,
			"cache_creation_input_tokens": 0,
		},
	}
}

// streamChat writes the reply as SSE chunks followed by a usage-only
// chunk and the [DONE] sentinel, the way stream_options.include_usage
// behaves.
func (s *Server) streamChat(w http.ResponseWriter, model string, reply Reply) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	writeChunk := func(payload map[string]interface{}) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	// Split the content into a few deltas so consumers see real chunking.
	for _, delta := range splitDeltas(reply.Content) {
		writeChunk(streamChunk(model, delta, ""))
	}
	writeChunk(streamChunk(model, "", reply.FinishReason))
	writeChunk(map[string]interface{}{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{},
		"usage":   chatUsage(reply.Usage),
	})

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func streamChunk(model, delta, finishReason string) map[string]interface{} {
	choice := map[string]interface{}{
		"index": 0,
		"delta": map[string]interface{}{},
	}
	if delta != "" {
		choice["delta"] = map[string]interface{}{"content": delta}
	}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	return map[string]interface{}{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{choice},
	}
}

// splitDeltas cuts content into at most three chunks.
func splitDeltas(content string) []string {
	if content == "" {
		return nil
	}
	size := (len(content) + 2) / 3
	var deltas []string
	for len(content) > 0 {
		if len(content) <= size {
			deltas = append(deltas, content)
			break
		}
		deltas = append(deltas, content[:size])
		content = content[size:]
	}
	return deltas
}

func chatUsage(u *Usage) map[string]interface{} {
	return map[string]interface{}{
		"prompt_tokens":     u.Input,
		"completion_tokens": u.Output,
		"total_tokens":      u.Input + u.Output,
		"prompt_tokens_details": map[string]interface{}{
			"cached_tokens": u.Cached,
		},
		"completion_tokens_details": map[string]interface{}{
			"reasoning_tokens": u.Reasoning,
		},
	}
}

func responsesUsage(u *Usage) map[string]interface{} {
	return map[string]interface{}{
		"input_tokens":  u.Input,
		"output_tokens": u.Output,
		"total_tokens":  u.Input + u.Output,
		"input_tokens_details": map[string]interface{}{
			"cached_tokens": u.Cached,
		},
		"output_tokens_details": map[string]interface{}{
			"reasoning_tokens": u.Reasoning,
		},
	}
}
