package session

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	platformgrpc "github.com/flogram-lab/wayout/internal/platform/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// TransportSecurity selects how a session protects its connection.
type TransportSecurity string

const (
	// SecurityPlaintext sends traffic unencrypted.
	SecurityPlaintext TransportSecurity = "plaintext"
	// SecurityTLS encrypts traffic and verifies the server certificate.
	SecurityTLS TransportSecurity = "tls"
)

// ParseTransportSecurity parses a transport security mode. The empty string
// selects plaintext.
func ParseTransportSecurity(value string) (TransportSecurity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(SecurityPlaintext):
		return SecurityPlaintext, nil
	case string(SecurityTLS):
		return SecurityTLS, nil
	default:
		return "", fmt.Errorf("unknown transport security %q (want %q or %q)", value, SecurityPlaintext, SecurityTLS)
	}
}

// Endpoint identifies a remote service. A session keeps its own copy, so
// changing an Endpoint after Open has no effect on the session.
type Endpoint struct {
	Host     string
	Port     int
	Security TransportSecurity
	// TLS is only read when Security is SecurityTLS.
	TLS platformgrpc.TLSFiles
}

// Address returns the host:port dial target.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String renders the endpoint for logs and error messages.
func (e Endpoint) String() string {
	security := e.Security
	if security == "" {
		security = SecurityPlaintext
	}
	return fmt.Sprintf("%s (%s)", e.Address(), security)
}

// Validate reports whether the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("endpoint host is required")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("endpoint port %d is out of range", e.Port)
	}
	switch e.Security {
	case "", SecurityPlaintext, SecurityTLS:
		return nil
	default:
		return fmt.Errorf("unknown transport security %q", e.Security)
	}
}

func (e Endpoint) transportCredentials() (credentials.TransportCredentials, error) {
	if e.Security != SecurityTLS {
		return insecure.NewCredentials(), nil
	}
	return platformgrpc.LoadClientTLS(e.TLS)
}
