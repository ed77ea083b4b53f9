// Minerva is a reasoning orchestration service for LLM backends.
//
// It exposes reasoning endpoints that drive iterative solve/verify/correct
// loops over configured providers, alongside an OpenAI-compatible surface:
//   - DeepThink: single-agent iterative reasoning with verification
//   - UltraThink: multi-agent fan-out with synthesis
//   - Provider abstraction with capability negotiation (OpenAI, Anthropic, generic)
//   - Prefix caching, rate limiting, token metering and a usage ledger
//
// Usage:
//
//	# Start the server with the default configuration file
//	minerva run
//
//	# Start with a custom configuration file
//	minerva run --config /etc/minerva/minerva.yaml
//
//	# Validate a configuration file
//	minerva validate --config minerva.yaml
//
//	# Show version information
//	minerva version
//
//	# Query recorded usage and cost
//	minerva usage --since 24h --format table
package main

func main() {
	Execute()
}
