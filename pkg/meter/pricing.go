package meter

// tokensPerUnit is the denominator of all rates: prices are USD per million
// tokens.
const tokensPerUnit = 1_000_000

// ModelPricing holds per-model rates in USD per million tokens. A zero rate
// means the corresponding token class is unpriced and costs nothing.
type ModelPricing struct {
	// Prompt is the rate for uncached input tokens.
	Prompt float64 `json:"prompt" yaml:"prompt"`

	// CachedPrompt is the discounted rate for cached input tokens.
	CachedPrompt float64 `json:"cached_prompt" yaml:"cached_prompt"`

	// Completion is the rate for regular output tokens.
	Completion float64 `json:"completion" yaml:"completion"`

	// Reasoning is the rate for reasoning output tokens.
	Reasoning float64 `json:"reasoning" yaml:"reasoning"`
}

// Cost prices a usage sample: uncached input at the prompt rate, cached
// input at the cached rate, regular output at the completion rate and
// reasoning output at the reasoning rate.
func (p ModelPricing) Cost(u UsageStats) float64 {
	cost := 0.0

	if uncached := u.InputTokens - u.CachedTokens; uncached > 0 {
		cost += float64(uncached) / tokensPerUnit * p.Prompt
	}
	if u.CachedTokens > 0 {
		cost += float64(u.CachedTokens) / tokensPerUnit * p.CachedPrompt
	}
	if regular := u.OutputTokens - u.ReasoningTokens; regular > 0 {
		cost += float64(regular) / tokensPerUnit * p.Completion
	}
	if u.ReasoningTokens > 0 {
		cost += float64(u.ReasoningTokens) / tokensPerUnit * p.Reasoning
	}

	return cost
}

// Pricing maps provider name to model name to rates.
type Pricing map[string]map[string]ModelPricing

// For looks up the rates for a provider/model pair.
func (p Pricing) For(provider, model string) (ModelPricing, bool) {
	models, ok := p[provider]
	if !ok {
		return ModelPricing{}, false
	}
	rates, ok := models[model]
	return rates, ok
}
