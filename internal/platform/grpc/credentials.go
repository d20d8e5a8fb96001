package grpc

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc/credentials"
)

// File names expected inside a TLS authority directory.
const (
	AuthorityCACert     = "ca-cert.pem"
	AuthorityServerCert = "server-cert.pem"
	AuthorityServerKey  = "server-key.pem"
	AuthorityClientCert = "client-cert.pem"
	AuthorityClientKey  = "client-key.pem"
)

// TLSFiles names the PEM files used to build transport credentials.
// Empty fields are skipped: a client without CAFile trusts the system roots,
// a client without CertFile/KeyFile presents no certificate, and a server
// without CAFile does not request client certificates.
type TLSFiles struct {
	CAFile     string
	CertFile   string
	KeyFile    string
	ServerName string
}

// ClientAuthorityFiles resolves client TLS files inside dir. The client
// certificate pair is only used when both files exist.
func ClientAuthorityFiles(dir string) TLSFiles {
	files := TLSFiles{CAFile: filepath.Join(dir, AuthorityCACert)}
	cert := filepath.Join(dir, AuthorityClientCert)
	key := filepath.Join(dir, AuthorityClientKey)
	if fileExists(cert) && fileExists(key) {
		files.CertFile = cert
		files.KeyFile = key
	}
	return files
}

// ServerAuthorityFiles resolves server TLS files inside dir. Client
// certificates are required when the CA file exists.
func ServerAuthorityFiles(dir string) TLSFiles {
	files := TLSFiles{
		CertFile: filepath.Join(dir, AuthorityServerCert),
		KeyFile:  filepath.Join(dir, AuthorityServerKey),
	}
	if ca := filepath.Join(dir, AuthorityCACert); fileExists(ca) {
		files.CAFile = ca
	}
	return files
}

// LoadClientTLS builds client transport credentials from files.
func LoadClientTLS(files TLSFiles) (credentials.TransportCredentials, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: files.ServerName,
	}

	if files.CAFile != "" {
		pool, err := loadCertPool(files.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if files.CertFile != "" || files.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(cfg), nil
}

// LoadServerTLS builds server transport credentials from files. When a CA
// file is given the server requires and verifies client certificates.
func LoadServerTLS(files TLSFiles) (credentials.TransportCredentials, error) {
	if files.CertFile == "" || files.KeyFile == "" {
		return nil, errors.New("server certificate and key are required")
	}
	cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server key pair: %w", err)
	}

	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if files.CAFile != "" {
		pool, err := loadCertPool(files.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}

	return credentials.NewTLS(cfg), nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pemCA, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemCA) {
		return nil, fmt.Errorf("failed to add CA certificate from %s", path)
	}
	return pool, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
