package anthropic

import (
	"strings"

	"mercator-hq/minerva/pkg/providers"
)

// Anthropic wire types. The request is built as an open map so caller
// parameters (top_p, thinking, stop_sequences, ...) pass through loss-free;
// responses are decoded with content blocks and usage kept raw.

// MessagesResponse is the wire shape of a Messages API response.
type MessagesResponse struct {
	ID           string                   `json:"id"`
	Type         string                   `json:"type"`
	Role         string                   `json:"role"`
	Content      []map[string]interface{} `json:"content"`
	Model        string                   `json:"model"`
	StopReason   string                   `json:"stop_reason"`
	StopSequence string                   `json:"stop_sequence,omitempty"`
	Usage        map[string]interface{}   `json:"usage"`
}

// StreamEvent is one SSE event from the streaming Messages API.
type StreamEvent struct {
	Type         string                 `json:"type"`
	Message      *MessagesResponse      `json:"message,omitempty"`
	Index        int                    `json:"index,omitempty"`
	ContentBlock map[string]interface{} `json:"content_block,omitempty"`
	Delta        *StreamDelta           `json:"delta,omitempty"`
	Usage        map[string]interface{} `json:"usage,omitempty"`
	Error        *StreamEventError      `json:"error,omitempty"`
}

// StreamDelta merges the delta payloads of content_block_delta and
// message_delta events into one decodable shape.
type StreamDelta struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	PartialJSON  string `json:"partial_json,omitempty"`
	Thinking     string `json:"thinking,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// StreamEventError is the payload of an error event.
type StreamEventError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// buildMessagesPayload builds the Messages API request body. System messages
// are extracted into the top-level system field, consecutive same-role turns
// are merged (the API rejects non-alternating conversations), and Extra
// fields are merged last.
func buildMessagesPayload(req *providers.ChatRequest, stream bool) map[string]interface{} {
	var systemParts []string
	messages := make([]map[string]interface{}, 0, len(req.Messages))

	for _, msg := range providers.NormalizeMessages(req.Messages) {
		if msg.Role == providers.RoleSystem {
			if text := providers.ExtractTextContent(msg.Content); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		messages = append(messages, map[string]interface{}{
			"role":    msg.Role,
			"content": convertContent(msg.Content),
		})
	}

	messages = mergeConsecutiveRoles(messages)

	payload := map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
	}
	if len(systemParts) > 0 {
		payload["system"] = strings.Join(systemParts, "\n\n")
	}
	if req.MaxTokens != nil {
		payload["max_tokens"] = *req.MaxTokens
	} else {
		payload["max_tokens"] = defaultMaxTokens
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if stream {
		payload["stream"] = true
	}
	for k, v := range req.Extra {
		payload[k] = v
	}
	return payload
}

// convertContent maps canonical message content to Anthropic content blocks.
// Plain strings pass through; OpenAI-style image_url parts become image
// source blocks.
func convertContent(content interface{}) interface{} {
	parts, ok := content.([]interface{})
	if !ok {
		return content
	}

	blocks := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case string:
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": p})
		case map[string]interface{}:
			blocks = append(blocks, convertPart(p))
		default:
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": providers.Stringify(p)})
		}
	}
	return blocks
}

// convertPart maps a single typed part into Anthropic block format.
func convertPart(part map[string]interface{}) map[string]interface{} {
	ptype, _ := part["type"].(string)

	switch ptype {
	case providers.PartText:
		return part

	case providers.PartOutputText:
		text, _ := part["text"].(string)
		return map[string]interface{}{"type": "text", "text": text}

	case providers.PartImageURL:
		url := imagePartURL(part)
		if mediaType, data, ok := parseDataURL(url); ok {
			return map[string]interface{}{
				"type": "image",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": mediaType,
					"data":       data,
				},
			}
		}
		return map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type": "url",
				"url":  url,
			},
		}

	default:
		// Native Anthropic blocks (image, tool_use, tool_result, thinking)
		// and anything else pass through untouched.
		if ptype != "" {
			return part
		}
		if text, ok := part["text"].(string); ok {
			return map[string]interface{}{"type": "text", "text": text}
		}
		return part
	}
}

// imagePartURL digs the URL out of an image_url part; both the OpenAI object
// form {"image_url": {"url": ...}} and the flat string form are accepted.
func imagePartURL(part map[string]interface{}) string {
	switch v := part["image_url"].(type) {
	case map[string]interface{}:
		url, _ := v["url"].(string)
		return url
	case string:
		return v
	}
	url, _ := part["url"].(string)
	return url
}

// parseDataURL splits a data:<media>;base64,<data> URL.
func parseDataURL(url string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "image/png"
	}
	return mediaType, payload, true
}

// mergeConsecutiveRoles merges consecutive same-role turns. The Messages API
// requires alternating user/assistant messages; orchestrated histories do
// not always comply.
func mergeConsecutiveRoles(messages []map[string]interface{}) []map[string]interface{} {
	if len(messages) < 2 {
		return messages
	}

	merged := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		if len(merged) > 0 && merged[len(merged)-1]["role"] == msg["role"] {
			prev := merged[len(merged)-1]
			prev["content"] = combineContents(prev["content"], msg["content"])
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}

// combineContents joins two content values, preserving block lists.
func combineContents(a, b interface{}) interface{} {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as + "\n\n" + bs
	}
	return append(toBlockList(a), toBlockList(b)...)
}

// toBlockList coerces a content value into a block list.
func toBlockList(content interface{}) []interface{} {
	switch c := content.(type) {
	case []interface{}:
		return c
	case string:
		return []interface{}{map[string]interface{}{"type": "text", "text": c}}
	default:
		return []interface{}{map[string]interface{}{"type": "text", "text": providers.Stringify(c)}}
	}
}

// transformMessagesResponse maps a Messages response to the call result
// shape. Text blocks concatenate into Content; the full block list is
// wrapped in a message item for RawOutput so tool blocks survive.
func transformMessagesResponse(resp *MessagesResponse) *providers.CallResult {
	var content string
	rawBlocks := make([]interface{}, 0, len(resp.Content))
	for _, block := range resp.Content {
		if t, _ := block["type"].(string); t == "text" {
			if text, ok := block["text"].(string); ok {
				content += text
			}
		}
		rawBlocks = append(rawBlocks, block)
	}

	role := resp.Role
	if role == "" {
		role = providers.RoleAssistant
	}

	return &providers.CallResult{
		Content: content,
		RawOutput: []map[string]interface{}{
			{"type": providers.PartMessage, "role": role, "content": rawBlocks},
		},
		Usage:        resp.Usage,
		FinishReason: normalizeStopReason(resp.StopReason),
	}
}

// transformStreamEvent maps one SSE event into a stream chunk, or nil for
// events that carry nothing to emit. The final message_delta event combines
// the input token count captured at message_start with the closing usage.
func transformStreamEvent(event *StreamEvent, state *streamState) (*providers.StreamChunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			state.usage = event.Message.Usage
		}
		return nil, nil

	case "content_block_start", "content_block_stop", "ping":
		return nil, nil

	case "content_block_delta":
		if event.Delta != nil && event.Delta.Text != "" {
			return &providers.StreamChunk{Delta: event.Delta.Text}, nil
		}
		return nil, nil

	case "message_delta":
		chunk := &providers.StreamChunk{}
		if event.Delta != nil {
			chunk.FinishReason = normalizeStopReason(event.Delta.StopReason)
		}
		chunk.Usage = mergeUsage(state.usage, event.Usage)
		return chunk, nil

	case "message_stop":
		return nil, nil

	case "error":
		message := "stream error"
		if event.Error != nil && event.Error.Message != "" {
			message = event.Error.Message
		}
		return nil, &providers.StreamError{Provider: state.provider, Message: message}

	default:
		// Forward-compatible: unknown event types are skipped.
		return nil, nil
	}
}

// streamState carries the provider name and opening usage across events.
type streamState struct {
	provider string
	usage    map[string]interface{}
}

// mergeUsage overlays the closing usage onto the opening one.
func mergeUsage(start, end map[string]interface{}) map[string]interface{} {
	if start == nil && end == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(start)+len(end))
	for k, v := range start {
		merged[k] = v
	}
	for k, v := range end {
		merged[k] = v
	}
	return merged
}

// normalizeStopReason normalizes Anthropic stop reasons to provider-agnostic values.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	case "tool_use":
		return providers.FinishReasonToolCalls
	case "stop_sequence":
		return providers.FinishReasonStop
	default:
		return reason
	}
}
