package providers

import "encoding/json"

// Output normalization maps tool_use/tool_result items from heterogeneous
// backends into one canonical typed shape:
//
//	tool_use:    {"type":"tool_use", "id":"call_abc", "name":"fn", "parameters":{...}}
//	tool_result: {"type":"tool_result", "tool_use_id":"call_abc",
//	              "content":[{"type":"output_text","text":"..."}], "is_error":false}
//
// Field-name aliases (call_id, arguments, function.arguments, input, ...) are
// folded into the canonical names. Unknown fields are preserved in a "details"
// sub-object so the mapping is loss-free.

// textLikeKeys are checked in order when a tool_result has no explicit content.
var textLikeKeys = []string{"text", "output_text", "content", "result", "data", "message"}

// NormalizeOutputItems normalizes a provider's output list into the canonical
// typed format. Items of type "message" pass through with their inner parts
// normalized; top-level tool objects become typed tool_use/tool_result items;
// unknown item types pass through untouched.
func NormalizeOutputItems(provider string, output []map[string]interface{}) []map[string]interface{} {
	normalized := make([]map[string]interface{}, 0, len(output))

	for _, item := range output {
		itype, _ := item["type"].(string)
		switch itype {
		case "", PartMessage:
			normalized = append(normalized, normalizeMessageItem(item))
		case PartToolUse, "function_call", "function.tool_call":
			normalized = append(normalized, normalizeToolUse(item))
		case PartToolResult, "function_result":
			normalized = append(normalized, normalizeToolResult(item))
		default:
			normalized = append(normalized, item)
		}
	}

	return normalized
}

// CollectOutputText aggregates plain text from typed output items for the
// convenience output_text field.
func CollectOutputText(output []map[string]interface{}) string {
	var buf string
	for _, item := range output {
		if t, _ := item["type"].(string); t != PartMessage {
			continue
		}
		parts, _ := item["content"].([]interface{})
		for _, p := range parts {
			part, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if pt, _ := part["type"].(string); pt == PartOutputText || pt == PartText {
				if text, ok := part["text"].(string); ok {
					buf += text
				}
			}
		}
	}
	return buf
}

// normalizeMessageItem passes a message item through, normalizing any inner
// tool parts and coercing untyped content into output_text parts.
func normalizeMessageItem(item map[string]interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(item))
	for k, v := range item {
		msg[k] = v
	}

	var parts []interface{}
	switch content := msg["content"].(type) {
	case []interface{}:
		parts = content
	case nil:
		parts = nil
	default:
		parts = []interface{}{content}
	}

	newParts := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		part, ok := p.(map[string]interface{})
		if !ok {
			for _, tp := range toOutputTextParts(p) {
				newParts = append(newParts, tp)
			}
			continue
		}
		switch part["type"] {
		case PartToolUse, "function_call", "function.tool_call":
			newParts = append(newParts, normalizeToolUse(part))
		case PartToolResult, "function_result":
			newParts = append(newParts, normalizeToolResult(part))
		default:
			if _, typed := part["type"]; typed {
				newParts = append(newParts, part)
			} else {
				for _, tp := range toOutputTextParts(part) {
					newParts = append(newParts, tp)
				}
			}
		}
	}

	msg["content"] = newParts
	if msg["role"] == nil || msg["role"] == "" {
		msg["role"] = RoleAssistant
	}
	if msg["type"] == nil || msg["type"] == "" {
		msg["type"] = PartMessage
	}
	return msg
}

// toolUseCanonical lists every field consumed by normalizeToolUse; anything
// else is preserved under "details".
var toolUseCanonical = map[string]bool{
	"type": true, "id": true, "call_id": true, "tool_call_id": true, "tool_use_id": true,
	"name": true, "tool_name": true,
	"parameters": true, "input": true, "arguments": true, "args": true, "function": true,
}

func normalizeToolUse(part map[string]interface{}) map[string]interface{} {
	id := firstString(part, "id", "call_id", "tool_call_id", "tool_use_id")

	name := firstString(part, "name", "tool_name")
	fn, _ := part["function"].(map[string]interface{})
	if name == "" && fn != nil {
		name, _ = fn["name"].(string)
	}

	var params interface{}
	for _, key := range []string{"parameters", "input", "arguments", "args"} {
		if v, ok := part[key]; ok && v != nil {
			params = v
			break
		}
	}
	if params == nil && fn != nil {
		params = fn["arguments"]
	}

	norm := map[string]interface{}{
		"type":       PartToolUse,
		"id":         id,
		"name":       name,
		"parameters": coerceParameters(params),
	}

	details := make(map[string]interface{})
	for k, v := range part {
		if !toolUseCanonical[k] {
			details[k] = v
		}
	}
	if len(details) > 0 {
		norm["details"] = details
	}
	return norm
}

// toolResultCanonical mirrors toolUseCanonical for tool_result items.
var toolResultCanonical = map[string]bool{
	"type": true, "tool_use_id": true, "call_id": true, "tool_call_id": true, "id": true,
	"content": true, "is_error": true, "error": true,
}

func normalizeToolResult(part map[string]interface{}) map[string]interface{} {
	refID := firstString(part, "tool_use_id", "call_id", "tool_call_id", "id")

	isError := false
	if b, ok := part["is_error"].(bool); ok && b {
		isError = true
	}
	if v, ok := part["error"]; ok && v != nil && v != false {
		isError = true
	}

	var content interface{}
	if v, ok := part["content"]; ok {
		content = v
	} else {
		content = extractFirstTextish(part)
	}

	norm := map[string]interface{}{
		"type":        PartToolResult,
		"tool_use_id": refID,
		"content":     toOutputTextParts(content),
	}
	if isError {
		norm["is_error"] = true
	}

	details := make(map[string]interface{})
	for k, v := range part {
		if toolResultCanonical[k] {
			continue
		}
		textish := false
		for _, tk := range textLikeKeys {
			if k == tk {
				textish = true
				break
			}
		}
		if !textish {
			details[k] = v
		}
	}
	if len(details) > 0 {
		norm["details"] = details
	}
	return norm
}

// coerceParameters ensures the parameters value is an object. JSON-encoded
// strings (OpenAI's function.arguments) are decoded; scalars are wrapped.
func coerceParameters(params interface{}) interface{} {
	switch p := params.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return p
	case []interface{}:
		return p
	case string:
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(p), &decoded); err == nil {
			return decoded
		}
		return map[string]interface{}{"value": p}
	default:
		return map[string]interface{}{"value": p}
	}
}

// toOutputTextParts converts an arbitrary value into typed content parts.
// Strings become a single output_text part; structured values are rendered
// as a JSON block; already-typed part lists pass through.
func toOutputTextParts(value interface{}) []interface{} {
	switch v := value.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		allTyped := len(v) > 0
		for _, x := range v {
			if m, ok := x.(map[string]interface{}); !ok || m["type"] == nil {
				allTyped = false
				break
			}
		}
		if allTyped {
			return v
		}
		if encoded, err := json.Marshal(v); err == nil {
			return []interface{}{map[string]interface{}{"type": PartOutputText, "text": string(encoded)}}
		}
		return []interface{}{map[string]interface{}{"type": PartOutputText, "text": Stringify(v)}}
	case map[string]interface{}:
		if v["type"] != nil {
			if _, hasText := v["text"]; hasText {
				return []interface{}{v}
			}
			if _, hasContent := v["content"]; hasContent {
				return []interface{}{v}
			}
		}
		if encoded, err := json.Marshal(v); err == nil {
			return []interface{}{map[string]interface{}{"type": PartOutputText, "text": string(encoded)}}
		}
		return []interface{}{map[string]interface{}{"type": PartOutputText, "text": Stringify(v)}}
	case string:
		return []interface{}{map[string]interface{}{"type": PartOutputText, "text": v}}
	default:
		return []interface{}{map[string]interface{}{"type": PartOutputText, "text": Stringify(v)}}
	}
}

// extractFirstTextish returns the first non-empty text-like field value.
func extractFirstTextish(part map[string]interface{}) interface{} {
	for _, k := range textLikeKeys {
		if v, ok := part[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

// firstString returns the first non-empty string value among the keys.
func firstString(part map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := part[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
