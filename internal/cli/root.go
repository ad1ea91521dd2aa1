// Package cli defines Cobra command definitions for the askgate CLI.
// This file contains the root command and shared engine bootstrapping.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/history"
	"github.com/askgate-dev/askgate/internal/log"
	"github.com/askgate-dev/askgate/internal/server"
	"github.com/askgate-dev/askgate/internal/session"
)

var version = "dev" // set via ldflags at build time

var rootCmd = &cobra.Command{
	Use:   "askgate",
	Short: "Human decision gate for automated agents",
	Long: `Askgate presents choice prompts to a human, in a terminal window or
in the browser, and hands exactly one outcome back to the automated
caller. Sessions survive surface switches and resolve on submission,
cancellation or timeout.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// defaultHost and defaultPort honor the ASKGATE_HOST / ASKGATE_PORT
// environment overrides.
func defaultHost() string {
	if host := os.Getenv("ASKGATE_HOST"); host != "" {
		return host
	}
	return "127.0.0.1"
}

func defaultPort() int {
	if raw := os.Getenv("ASKGATE_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port >= 0 {
			return port
		}
	}
	return 8765
}

// engine bundles everything a serving process needs.
type engine struct {
	dir      string
	logger   *log.Logger
	store    *config.Store
	history  *history.Store
	registry *session.Registry
	server   *server.Server
}

// newEngine wires the logger, config store, history sink, registry and HTTP
// server together. Port 0 binds a random free port.
func newEngine(host string, port int) (*engine, error) {
	dir := config.BaseDir()

	logger, err := log.NewLogger(config.LogPath(dir))
	if err != nil {
		return nil, err
	}

	store := config.NewStore(dir)
	pol := store.LoadOrDefault()

	var hist *history.Store
	var sink session.Sink
	if pol.PersistenceEnabled {
		hist, err = history.NewStore(config.HistoryPath(dir), pol.RetentionDays, pol.MaxSessions)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		sink = hist
	}

	registry := session.NewRegistry(sink, logger)

	srv, err := server.NewServer(host, port, registry, store, hist, logger)
	if err != nil {
		if hist != nil {
			_ = hist.Close()
		}
		return nil, err
	}

	registry.StartReaper()

	return &engine{
		dir:      dir,
		logger:   logger,
		store:    store,
		history:  hist,
		registry: registry,
		server:   srv,
	}, nil
}

// shutdown resolves pending sessions as interrupted and releases resources.
func (e *engine) shutdown() {
	e.registry.CloseAll()
	_ = e.server.Stop()
	if e.history != nil {
		_ = e.history.Close()
	}
}
