// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Command rtc-signal is a minimal WebSocket signaling relay: the
// external channel original_source's examples assume exists and pass
// offers/answers/candidates over by hand. It accepts WebSocket
// connections keyed by a client id carried in the URL path
// (ws://host:port/<path>/<id>) and forwards any JSON-wrapped SDP or
// candidate envelope to the id it names. It is explicitly not a
// general signaling server, an SFU, or a Matrix client (spec.md §1
// Non-goals, carried in SPEC_FULL.md §13): it relays exactly the two
// message shapes SPEC_FULL.md §12/§13 describe and never interprets
// SDP.
//
// Configuration is loaded from a single YAML file, matching
// lib/config's "no fallback discovery" contract: pass the path with
// --config, or set RTC_SIGNAL_CONFIG.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/pflag"

	"github.com/corvid-labs/rtc/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rtc-signal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("rtc-signal", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to rtc-signal's YAML config (or set RTC_SIGNAL_CONFIG)")
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	path, err := resolvePath(configPath)
	if err != nil {
		return err
	}
	cfg, err := Load(path)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := newRelay(cfg.SessionTTL, logger)

	srv := websocket.NewServer()
	srv.OnConnect(r.connect)

	mux := http.NewServeMux()
	mux.Handle("/"+cfg.Path+"/", http.StripPrefix("/"+cfg.Path, srv.Handler()))

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("rtc-signal listening", "addr", cfg.ListenAddr, "path", cfg.Path)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	ticker := newMaintenanceTicker(ctx, r, cfg, logger)
	defer ticker.Stop()

	select {
	case <-ctx.Done():
		logger.Info("rtc-signal shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return <-serveErr
	case err := <-serveErr:
		return err
	}
}

// newMaintenanceTicker starts the background loop that sweeps stale
// sessions and, when configured, dumps the relay's own session
// snapshot to disk. It stops itself when ctx is done.
func newMaintenanceTicker(ctx context.Context, r *relay, cfg Config, logger *slog.Logger) *time.Ticker {
	interval := cfg.SessionTTL
	if cfg.DumpStatsInterval > 0 && (interval == 0 || cfg.DumpStatsInterval < interval) {
		interval = cfg.DumpStatsInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := r.sweep(now); evicted > 0 {
					logger.Info("evicted stale signaling sessions", "count", evicted)
				}
				if cfg.DumpStatsInterval > 0 && cfg.DumpStatsFile != "" {
					if err := dumpStats(r, cfg.DumpStatsFile); err != nil {
						logger.Warn("dump-stats failed", "error", err)
					}
				}
			}
		}
	}()
	return ticker
}

func dumpStats(r *relay, path string) error {
	data, err := cbor.Marshal(r.snapshot())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
