// Package wayout parses wayout client flags and performs its single call.
package wayout

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/flogram-lab/wayout/internal/flotg"
	entrypoint "github.com/flogram-lab/wayout/internal/platform/cmd"
	platformgrpc "github.com/flogram-lab/wayout/internal/platform/grpc"
	"github.com/flogram-lab/wayout/internal/session"
)

// SuccessMessage is printed once the call has completed and every resource
// has been released.
const SuccessMessage = "SUCCESS!"

// Config holds wayout command configuration.
type Config struct {
	Host          string        `env:"WAYOUT_HOST"            envDefault:"localhost"`
	Port          int           `env:"WAYOUT_PORT"            envDefault:"8920"`
	Transport     string        `env:"WAYOUT_TRANSPORT"       envDefault:"plaintext"`
	TLSAuthority  string        `env:"WAYOUT_TLS_AUTHORITY"`
	TLSServerName string        `env:"WAYOUT_TLS_SERVER_NAME"`
	Concurrency   int           `env:"WAYOUT_CONCURRENCY"     envDefault:"1"`
	DialTimeout   time.Duration `env:"WAYOUT_DIAL_TIMEOUT"    envDefault:"2s"`
	CallTimeout   time.Duration `env:"WAYOUT_CALL_TIMEOUT"    envDefault:"2s"`
	WaitForHealth bool          `env:"WAYOUT_WAIT_FOR_HEALTH"`
	CheckReady    bool          `env:"WAYOUT_CHECK_READY"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Host, "host", cfg.Host, "FlotgService host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "FlotgService port")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport security: plaintext or tls")
	fs.StringVar(&cfg.TLSAuthority, "tls-authority", cfg.TLSAuthority, "directory with ca-cert.pem and optional client-cert.pem/client-key.pem")
	fs.StringVar(&cfg.TLSServerName, "tls-server-name", cfg.TLSServerName, "override the server name verified during the TLS handshake")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "execution context concurrency")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection timeout")
	fs.DurationVar(&cfg.CallTimeout, "call-timeout", cfg.CallTimeout, "per-call deadline")
	fs.BoolVar(&cfg.WaitForHealth, "wait-for-health", cfg.WaitForHealth, "wait for the gRPC health check to report SERVING")
	fs.BoolVar(&cfg.CheckReady, "check-ready", cfg.CheckReady, "call Ready before GetChats")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Endpoint builds the session endpoint described by cfg.
func (cfg Config) Endpoint() (session.Endpoint, error) {
	security, err := session.ParseTransportSecurity(cfg.Transport)
	if err != nil {
		return session.Endpoint{}, err
	}
	endpoint := session.Endpoint{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Security: security,
	}
	if security == session.SecurityTLS {
		if cfg.TLSAuthority != "" {
			endpoint.TLS = platformgrpc.ClientAuthorityFiles(cfg.TLSAuthority)
		}
		endpoint.TLS.ServerName = cfg.TLSServerName
	}
	return endpoint, endpoint.Validate()
}

func (cfg Config) sessionOptions() []session.Option {
	opts := []session.Option{
		session.WithDialTimeout(cfg.DialTimeout),
		session.WithCallTimeout(cfg.CallTimeout),
	}
	if cfg.WaitForHealth {
		opts = append(opts, session.WithHealthCheck(flotg.ServiceName))
	}
	return opts
}

// Run opens a session to the configured FlotgService, issues GetChats and
// writes SuccessMessage to out once the session and execution context have
// been released.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWayout, func(ctx context.Context) error {
		err := session.WithExecutor(cfg.Concurrency, func(exec *session.Executor) error {
			return exec.WithSession(ctx, endpoint, func(s *session.Session) error {
				client := flotg.NewClient(s)
				if cfg.CheckReady {
					if err := client.Ready(ctx); err != nil {
						return err
					}
				}
				_, err := client.GetChats(ctx)
				return err
			}, cfg.sessionOptions()...)
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, SuccessMessage)
		return err
	})
}
