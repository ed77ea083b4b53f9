/*
Package security provides transport security (TLS) and API key
authentication for Minerva.

# TLS

Build a server TLS configuration from the config section, with hot
certificate rotation:

	tlsConfig, err := tls.Build(&cfg.Server.TLS)
	if err != nil {
		log.Fatal(err)
	}

	reloader, err := tls.NewReloader(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, logger)
	if err != nil {
		log.Fatal(err)
	}
	tlsConfig.GetCertificate = reloader.GetCertificateFunc()
	go reloader.Watch(ctx)

# API Key Authentication

Validate API keys in HTTP middleware:

	validator := auth.FromConfig(&cfg.Auth, logger)
	sources := auth.SourcesFromConfig(cfg.Auth.Sources)

	http.Handle("/", auth.NewMiddleware(validator, sources, logger).Handle(handler))
*/
package security
