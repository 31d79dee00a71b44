package main

import (
	"os"
	"strings"

	"github.com/dkeye/Huddle/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "huddle",
		Short:         "Ephemeral rooms with a WebRTC signaling relay",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	serve := newServeCmd()
	root.AddCommand(serve, newSweepCmd(), newPeerCmd())
	root.RunE = serve.RunE
	return root
}

// setupLogging: console output outside release, JSON in release.
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg == nil || cfg.Mode != "release" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && cfg.LogLevel != "" {
			level = l
		}
	}
	zerolog.SetGlobalLevel(level)
}

func loadConfig() (*config.Config, error) {
	setupLogging(nil)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}
