package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long to wait after a file event before reloading,
// so a cert+key pair written in two steps is picked up as one rotation.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the certificate and key files and swaps the served
// certificate when they are rotated on disk, without a server restart.
type Reloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewReloader loads the initial certificate and prepares a watcher on the
// directories holding the cert and key files. The directories are watched
// rather than the files themselves so atomic replaces (write temp, rename
// over) keep producing events after the original inode is gone.
func NewReloader(certFile, keyFile string, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(certFile): {},
		filepath.Dir(keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
		watcher:  watcher,
	}
	if err := r.reload(); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, err
	}
	r.logCertificateInfo()

	return r, nil
}

// Watch processes file events until the context is cancelled. It is a
// blocking call; run it in its own goroutine.
func (r *Reloader) Watch(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		r.watcher.Close() //nolint:errcheck
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.matches(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := r.reload(); err != nil {
					r.logger.Error("Certificate reload failed, keeping previous certificate",
						"cert_file", r.certFile,
						"error", err,
					)
					return
				}
				r.logger.Info("Certificate reloaded", "cert_file", r.certFile)
				r.logCertificateInfo()
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("Certificate watcher error", "error", err)
		}
	}
}

// matches reports whether the event concerns the cert or key file.
func (r *Reloader) matches(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	return name == filepath.Base(r.certFile) || name == filepath.Base(r.keyFile)
}

// reload loads and validates the key pair from disk and swaps it in.
func (r *Reloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	if err := validateCertificate(&cert); err != nil {
		return err
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	return nil
}

// GetCertificate returns the currently loaded certificate.
func (r *Reloader) GetCertificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificateFunc adapts the reloader to tls.Config.GetCertificate.
func (r *Reloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return r.GetCertificate(), nil
	}
}

func (r *Reloader) logCertificateInfo() {
	cert := r.GetCertificate()
	if cert == nil || len(cert.Certificate) == 0 {
		return
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return
	}

	days, warning := expiresWithin(leaf)
	if warning != "" {
		r.logger.Warn("Certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}
	r.logger.Info("Certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
}
