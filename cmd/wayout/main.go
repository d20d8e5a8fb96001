// Package main opens a session to FlotgService, performs one call and exits.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	wayoutcmd "github.com/flogram-lab/wayout/internal/cmd/wayout"
	"github.com/flogram-lab/wayout/internal/platform/config"
)

func main() {
	cfg, err := wayoutcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[WAYOUT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := wayoutcmd.Run(ctx, cfg, os.Stdout); err != nil {
		stop()
		config.Exitf("wayout: %v", err)
	}
}
