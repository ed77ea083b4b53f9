package providers

import "fmt"

// NormalizeMessages ensures every message carries a role and a content value
// in one of the two canonical forms: a plain string or a list of typed parts.
// Anything else is stringified. The input slice is not mutated.
func NormalizeMessages(messages []Message) []Message {
	normalized := make([]Message, 0, len(messages))

	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = RoleUser
		}

		switch content := msg.Content.(type) {
		case string:
			normalized = append(normalized, Message{Role: role, Content: content, Name: msg.Name})
		case []interface{}:
			// Multi-modal content passes through untouched
			normalized = append(normalized, Message{Role: role, Content: content, Name: msg.Name})
		case nil:
			normalized = append(normalized, Message{Role: role, Content: "", Name: msg.Name})
		default:
			normalized = append(normalized, Message{Role: role, Content: Stringify(content), Name: msg.Name})
		}
	}

	return normalized
}

// ExtractTextContent extracts plain text from message content, joining the
// text parts of multi-modal content with newlines. Image and other non-text
// parts are skipped.
func ExtractTextContent(content interface{}) string {
	switch c := content.(type) {
	case string:
		return c
	case []interface{}:
		var text string
		for _, part := range c {
			var piece string
			switch p := part.(type) {
			case map[string]interface{}:
				if p["type"] == PartText || p["type"] == PartOutputText {
					piece, _ = p["text"].(string)
				} else if t, ok := p["text"].(string); ok {
					piece = t
				}
			case string:
				piece = p
			}
			if piece == "" {
				continue
			}
			if text != "" {
				text += "\n"
			}
			text += piece
		}
		return text
	case nil:
		return ""
	default:
		return Stringify(c)
	}
}

// Stringify renders an arbitrary content value as a string. Plain strings
// pass through; everything else uses the default Go formatting, which is
// stable for the scalar types that appear in practice.
func Stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message. Content may be a string or a part list.
func UserMessage(content interface{}) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// TruncateHistory keeps at most max non-system messages, preserving any
// system messages at the front. A non-positive max returns the input as is.
func TruncateHistory(messages []Message, max int) []Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}

	var system, other []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			other = append(other, m)
		}
	}

	if len(other) > max {
		other = other[len(other)-max:]
	}
	return append(system, other...)
}
