package meter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"mercator-hq/minerva/pkg/providers"
)

// FallbackEncoding tokenizes models without a registered vocabulary.
const FallbackEncoding = "cl100k_base"

// Message framing overhead of chat-format prompts: every message is wrapped
// in start/role/end special tokens, and the reply is primed with three more.
const (
	tokensPerMessage   = 4
	replyPrimingTokens = 3
)

// modelEncodings maps model name prefixes to tiktoken vocabularies.
var modelEncodings = map[string]string{
	"gpt-5":         "o200k_base",
	"gpt-4o":        "o200k_base",
	"o1":            "o200k_base",
	"o3":            "o200k_base",
	"o4":            "o200k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// encodingNameFor resolves the vocabulary for a model by longest prefix
// match, falling back to cl100k_base.
func encodingNameFor(model string) string {
	name := FallbackEncoding
	bestLen := -1
	for prefix, encoding := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			name = encoding
			bestLen = len(prefix)
		}
	}
	return name
}

// Estimator produces pre-flight prompt token estimates with tiktoken.
// Vocabularies load lazily on first use (the library may fetch them over the
// network) and are cached for the estimator's lifetime. Estimates are
// advisory and never feed billing; billing uses the counts providers report.
type Estimator struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewEstimator creates an estimator with an empty vocabulary cache.
func NewEstimator() *Estimator {
	return &Estimator{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// CountText estimates the tokens of a single string under the model's
// vocabulary.
func (e *Estimator) CountText(model, text string) (int, error) {
	enc, err := e.encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages estimates the prompt tokens of a message list, including
// chat framing overhead. Non-text content contributes only its text parts.
func (e *Estimator) CountMessages(model string, messages []providers.Message) (int, error) {
	enc, err := e.encodingFor(model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(msg.Role, nil, nil))
		total += len(enc.Encode(providers.ExtractTextContent(msg.Content), nil, nil))
		if msg.Name != "" {
			total += len(enc.Encode(msg.Name, nil, nil))
		}
	}
	total += replyPrimingTokens
	return total, nil
}

func (e *Estimator) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	name := encodingNameFor(model)

	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", name, err)
	}
	e.encodings[name] = enc
	return enc, nil
}
