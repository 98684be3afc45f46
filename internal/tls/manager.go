package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"admin-auth/internal/config"
	"admin-auth/internal/util"
)

const (
	ModeFiles      = "files"
	ModeAutoCert   = "autocert"
	ModeSelfSigned = "self-signed"
)

// Manager supplies certificates to the local server. Exactly one source is
// active: static files, ACME via autocert, or an in-memory self-signed pair.
type Manager struct {
	mode     string
	cert     *tls.Certificate
	autoCert *autocert.Manager
}

func NewManager(cfg config.TLSConfig) (*Manager, error) {
	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate pair: %w", err)
		}
		util.Info("TLS certificate loaded", util.String("cert_file", cfg.CertFile))
		return &Manager{mode: ModeFiles, cert: &cert}, nil

	case cfg.AutoCertHost != "":
		if err := os.MkdirAll(cfg.AutoCertDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create autocert directory: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.AutoCertHost),
			Cache:      autocert.DirCache(cfg.AutoCertDir),
			Email:      cfg.AutoCertEmail,
		}
		util.Info("AutoCert configured",
			util.String("host", cfg.AutoCertHost),
			util.String("cache_dir", cfg.AutoCertDir))
		return &Manager{mode: ModeAutoCert, autoCert: m}, nil

	default:
		certPEM, keyPEM, err := GenerateDevCert(cfg.DevHosts, 30*24*time.Hour)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load generated certificate: %w", err)
		}
		util.Warn("Serving with a self-signed certificate", util.Strings("hosts", cfg.DevHosts))
		return &Manager{mode: ModeSelfSigned, cert: &cert}, nil
	}
}

func (m *Manager) Mode() string {
	return m.mode
}

func (m *Manager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		return m.autoCert.GetCertificate(hello)
	}
	return m.cert, nil
}

func (m *Manager) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// ChallengeHandler answers ACME http-01 challenges and passes everything else
// to fallback. Without autocert it returns nil.
func (m *Manager) ChallengeHandler(fallback http.Handler) http.Handler {
	if m.autoCert == nil {
		return nil
	}
	return m.autoCert.HTTPHandler(fallback)
}
