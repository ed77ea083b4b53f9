package tls

import (
	"context"
	"crypto/x509"
	"log/slog"
	"testing"
	"time"
)

func TestNewReloader_LoadsInitialCertificate(t *testing.T) {
	now := time.Now()
	certFile, keyFile := writeKeyPair(t, t.TempDir(), now.Add(-time.Hour), now.Add(24*time.Hour))

	reloader, err := NewReloader(certFile, keyFile, slog.Default())
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reloader.Watch(ctx)

	cert := reloader.GetCertificate()
	if cert == nil {
		t.Fatal("GetCertificate() = nil after initial load")
	}

	got, err := reloader.GetCertificateFunc()(nil)
	if err != nil {
		t.Fatalf("GetCertificateFunc() error = %v", err)
	}
	if got != cert {
		t.Error("GetCertificateFunc() returned a different certificate")
	}
}

func TestNewReloader_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewReloader(dir+"/missing.crt", dir+"/missing.key", nil); err == nil {
		t.Error("expected error for missing certificate files")
	}
}

func TestReloader_PicksUpRotation(t *testing.T) {
	now := time.Now()
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, now.Add(-time.Hour), now.Add(24*time.Hour))

	reloader, err := NewReloader(certFile, keyFile, slog.Default())
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reloader.Watch(ctx)

	// Overwrite with a fresh key pair; the serial stays 1, so compare
	// NotAfter instead.
	writeKeyPair(t, dir, now.Add(-time.Hour), now.Add(48*time.Hour))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("certificate was not reloaded after rotation")
		case <-time.After(100 * time.Millisecond):
		}
		leaf := parseLeaf(t, reloader)
		if leaf.NotAfter.After(now.Add(36 * time.Hour)) {
			return
		}
	}
}

func parseLeaf(t *testing.T, r *Reloader) *x509.Certificate {
	t.Helper()
	cert := r.GetCertificate()
	if cert == nil || len(cert.Certificate) == 0 {
		t.Fatal("no certificate loaded")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse leaf: %v", err)
	}
	return leaf
}
