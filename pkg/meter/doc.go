// Package meter tracks token usage and estimates cost across provider calls.
//
// A TokenMeter is created per request and shared by every stage of a
// reasoning run, including parallel agents. Each provider call records its
// usage payload; the meter extracts input, output, cached and reasoning
// token counts, accumulates them per provider and model, and prices them
// against a configured rate table.
//
// # Token accounting
//
// The meter assumes the OpenAI usage schema: cached tokens are a subset of
// input tokens and reasoning tokens are a subset of output tokens. Cost is
// decomposed accordingly:
//
//	cost = (input-cached)/1M * prompt
//	     + cached/1M        * cached_prompt
//	     + (output-reason)/1M * completion
//	     + reason/1M        * reasoning
//
// Violations of the subset assumptions are logged as warnings; strict mode
// turns them into errors for billing-accuracy audits.
//
// # Usage
//
//	m := meter.New(pricing, meter.Options{Logger: logger})
//	if err := m.Record("openai", "gpt-5", result.Usage); err != nil {
//		return err
//	}
//	summary := m.Summary()
//	fmt.Printf("cost: $%.4f\n", summary.TotalCostUSD)
//
// OnRecord hooks observe every recorded call, which is how the usage ledger
// receives per-call rows without the engines knowing about persistence.
//
// The Estimator is separate from metering: it predicts prompt tokens with
// tiktoken before a request is sent, for the usage CLI and debug logging.
// Estimates never feed billing.
package meter
