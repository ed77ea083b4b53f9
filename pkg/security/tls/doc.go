/*
Package tls builds crypto/tls server configuration from the service
configuration and keeps certificates fresh on disk rotation.

# Server Configuration

	tlsConfig, err := tls.Build(&cfg.Server.TLS)
	if err != nil {
		log.Fatal(err)
	}

# Certificate Auto-Reload

Certificates renewed on disk (Let's Encrypt, cert-manager) are picked up
without a restart:

	reloader, err := tls.NewReloader(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, logger)
	if err != nil {
		log.Fatal(err)
	}
	go reloader.Watch(ctx)
	tlsConfig.GetCertificate = reloader.GetCertificateFunc()
*/
package tls
