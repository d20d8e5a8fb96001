// Package flotgstub parses flotg stub flags and launches the stub server.
package flotgstub

import (
	"context"
	"flag"

	"github.com/flogram-lab/wayout/internal/flotg/stub"
	entrypoint "github.com/flogram-lab/wayout/internal/platform/cmd"
)

// Config holds flotg stub command configuration.
type Config struct {
	Port         int    `env:"WAYOUT_STUB_PORT"          envDefault:"8920"`
	TLSAuthority string `env:"WAYOUT_STUB_TLS_AUTHORITY"`
	Unready      bool   `env:"WAYOUT_STUB_UNREADY"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The stub gRPC server port")
	fs.StringVar(&cfg.TLSAuthority, "tls-authority", cfg.TLSAuthority, "directory with ca-cert.pem, server-cert.pem and server-key.pem")
	fs.BoolVar(&cfg.Unready, "unready", cfg.Unready, "start reporting not ready")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the stub server and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFlotgStub, func(ctx context.Context) error {
		return stub.Run(ctx, cfg.Port, stub.Options{
			TLSAuthority: cfg.TLSAuthority,
			Unready:      cfg.Unready,
		})
	})
}
