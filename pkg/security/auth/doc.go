/*
Package auth provides API key authentication for the Minerva API surface.

Keys come from the service configuration: literal values or environment
variables, each with an operator-facing name used in logs. Presented keys
are matched with constant-time comparison. Extraction sources are
configurable; the defaults accept a standard Bearer token or an X-API-Key
header.

# Basic Usage

Build the validator and middleware from the loaded configuration:

	validator := auth.FromConfig(&cfg.Auth, logger)
	mw := auth.NewMiddleware(validator, auth.SourcesFromConfig(cfg.Auth.Sources), logger)

	http.Handle("/", mw.Handle(apiHandler))

# Extracting Key Info

Inside a handler, retrieve the authenticated key's name for attribution:

	if info, ok := auth.GetKeyInfo(r.Context()); ok {
		logger.Info("request", "key_name", info.Name)
	}

Failed authentication produces a 401 response in the OpenAI error shape,
matching the rest of the API surface.
*/
package auth
