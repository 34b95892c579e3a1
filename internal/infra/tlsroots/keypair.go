package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
)

// FileWatcher is the part of the config watcher a KeyPair needs.
type FileWatcher interface {
	Watch(path string) error
	OnChange(func(string))
}

// KeyPair is a server certificate loaded from a cert/key file pair.
type KeyPair struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
	logger   *slog.Logger
}

// LoadKeyPair reads the pair once. A nil logger uses slog.Default.
func LoadKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		logger:   logger,
	}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Reload re-reads both files. On error the previous certificate stays in
// use.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	kp.cert.Store(&cert)
	return nil
}

// Watch reloads the pair whenever w reports a change to either file.
func (kp *KeyPair) Watch(w FileWatcher) error {
	for _, f := range []string{kp.certFile, kp.keyFile} {
		if err := w.Watch(f); err != nil {
			return err
		}
	}
	w.OnChange(func(path string) {
		path = filepath.Clean(path)
		if path != kp.certFile && path != kp.keyFile {
			return
		}
		if err := kp.Reload(); err != nil {
			// Half-written pairs fail here until the second file lands.
			kp.logger.Warn("certificate reload failed, keeping previous", "file", path, "error", err)
			return
		}
		kp.logger.Info("certificate reloaded", "cert", kp.certFile)
	})
	return nil
}

// GetCertificate serves the current certificate to tls.Config.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return kp.cert.Load(), nil
}

// ServerConfig returns a server configuration using the pair.
func (kp *KeyPair) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: kp.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
