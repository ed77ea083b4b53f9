package providers

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// StartHealthChecker starts a background goroutine that periodically checks
// the provider's health. It updates the provider's health status atomically.
//
// The health checker runs until the provider is closed or the context is
// cancelled. It backs off exponentially while the provider is unhealthy to
// reduce load on a struggling backend.
func (p *HTTPProvider) StartHealthChecker(ctx context.Context) {
	go p.runHealthChecker(ctx)
}

// runHealthChecker is the main health checking loop.
func (p *HTTPProvider) runHealthChecker(ctx context.Context) {
	defer close(p.healthCheckStopped)

	interval := p.config.HealthCheckInterval
	if interval == 0 {
		interval = 30 * time.Second // Default to 30 seconds
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("health checker started",
		"provider", p.config.Name,
		"interval", interval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("health checker stopped (context cancelled)", "provider", p.config.Name)
			return

		case <-p.stopHealthCheck:
			slog.Debug("health checker stopped (provider closed)", "provider", p.config.Name)
			return

		case <-ticker.C:
			p.performHealthCheck(ctx)

			if !p.IsHealthy() {
				health := p.GetHealth()
				backoffInterval := calculateBackoff(health.ConsecutiveFailures, interval)
				ticker.Reset(backoffInterval)

				slog.Debug("health check backoff",
					"provider", p.config.Name,
					"consecutive_failures", health.ConsecutiveFailures,
					"next_check_in", backoffInterval,
				)
			} else {
				ticker.Reset(interval)
			}
		}
	}
}

// performHealthCheck executes a single health check.
func (p *HTTPProvider) performHealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := p.healthCheckImpl(checkCtx)
	latency := time.Since(start)

	if err != nil {
		p.updateHealth(false, err)
		slog.Error("health check failed",
			"provider", p.config.Name,
			"error", err,
			"latency", latency,
		)
	} else {
		health := p.GetHealth()
		recovered := health.ConsecutiveFailures > 0

		p.updateHealth(true, nil)
		slog.Debug("health check passed",
			"provider", p.config.Name,
			"latency", latency,
		)

		if recovered {
			slog.Info("provider marked healthy",
				"provider", p.config.Name,
				"previous_failures", health.ConsecutiveFailures,
			)
		}
	}
}

// healthCheckImpl performs the actual health check against the cheapest
// endpoint the backend offers. OpenAI-compatible backends expose a models
// listing; Anthropic has no unauthenticated probe, so the base URL is used.
func (p *HTTPProvider) healthCheckImpl(ctx context.Context) error {
	url := strings.TrimSuffix(p.config.BaseURL, "/")
	headers := make(map[string]string)

	switch p.config.Type {
	case "anthropic":
		headers["x-api-key"] = p.config.APIKey
		headers["anthropic-version"] = anthropicVersion
	default:
		// openai and generic backends list models cheaply
		url += "/models"
		if p.config.APIKey != "" {
			headers["Authorization"] = "Bearer " + p.config.APIKey
		}
	}

	resp, err := p.DoRequest(ctx, "GET", url, nil, headers)
	if err != nil {
		// A 404 on the probe path means reachable but unadorned; that is
		// still a live backend.
		if _, ok := err.(*NotFoundError); ok {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	return nil
}

// anthropicVersion is the API version header value sent on Anthropic probes
// and requests.
const anthropicVersion = "2023-06-01"

// calculateBackoff calculates the backoff interval based on consecutive failures.
// It uses exponential backoff with a maximum interval of 5 minutes.
func calculateBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 1 << uint(consecutiveFailures) // 2^failures
	if multiplier > 10 {
		multiplier = 10 // Cap at 10x the base interval
	}

	backoff := baseInterval * time.Duration(multiplier)

	maxBackoff := 5 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return backoff
}

// HealthCheck performs a synchronous health check (part of Provider interface).
// This is called on-demand, while StartHealthChecker runs periodic checks.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	return p.healthCheckImpl(ctx)
}
