package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"mercator-hq/minerva/pkg/config"
)

// Build converts the service TLS configuration into a crypto/tls.Config.
// It returns (nil, nil) when TLS is disabled.
func Build(cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if cfg.CertFile == "" {
		return nil, fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("key_file is required when TLS is enabled")
	}
	if _, err := os.Stat(cfg.CertFile); err != nil {
		return nil, fmt.Errorf("certificate file not found: %s: %w", cfg.CertFile, err)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("key file not found: %s: %w", cfg.KeyFile, err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if err := validateCertificate(&cert); err != nil {
		return nil, fmt.Errorf("certificate validation failed: %w", err)
	}

	// #nosec G402 - MinVersion is configurable and validated (TLS 1.0/1.1 rejected)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseMinVersion(cfg.MinVersion),
	}, nil
}

// parseMinVersion maps the configured minimum version to a tls constant.
// Only 1.2 and 1.3 are accepted; anything else falls back to 1.3.
func parseMinVersion(v string) uint16 {
	switch v {
	case "1.2":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS13
	}
}

// validateCertificate checks that the leaf certificate parses and is
// within its validity window.
func validateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}

	return nil
}

// expiresWithin reports how many days remain on the certificate and a
// warning string when fewer than 30 days are left.
func expiresWithin(cert *x509.Certificate) (daysUntilExpiry int, warning string) {
	daysUntilExpiry = int(time.Until(cert.NotAfter).Hours() / 24)
	if daysUntilExpiry < 30 {
		warning = fmt.Sprintf("certificate expires in %d days (on %s)",
			daysUntilExpiry, cert.NotAfter.Format("2006-01-02"))
	}
	return daysUntilExpiry, warning
}
