package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampler strategy names accepted in configuration.
const (
	// SamplerAlways records every trace.
	SamplerAlways = "always"

	// SamplerNever records no traces.
	SamplerNever = "never"

	// SamplerRatio records a fraction of traces.
	SamplerRatio = "ratio"
)

// newSampler builds the configured sampler. Ratio sampling is
// parent-based: a sampled upstream trace stays sampled end to end even
// when the local ratio would have dropped it.
func newSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	switch strategy {
	case SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("sample ratio must be in [0, 1], got %v", ratio)
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s", strategy)
	}
}
