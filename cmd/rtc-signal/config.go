// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is cmd/rtc-signal's own configuration, loaded from a single
// YAML file with no fallback discovery, the same contract
// lib/config.Load enforces for the wider project: an explicit path
// (--config, or the RTC_SIGNAL_CONFIG environment variable) is the
// only way in. There is no compiled-in search path.
type Config struct {
	// ListenAddr is the address the relay's HTTP/WebSocket server
	// binds, e.g. ":8443".
	ListenAddr string `yaml:"listen_addr"`

	// Path is the URL path prefix clients connect under; a client
	// dials ws://host:port/<Path>/<id>. Defaults to "ws".
	Path string `yaml:"path"`

	// SessionTTL evicts a client id's session table entry once it has
	// had no connected WebSocket for this long, so stale ids from
	// crashed peers don't accumulate forever. Zero disables eviction.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// DumpStatsInterval, if non-zero, periodically cbor-encodes the
	// relay's own session table (connected ids, relayed message
	// counts) to DumpStatsFile. This is the relay's own bookkeeping,
	// not PeerConnection.Stats() — rtc-signal never holds a
	// PeerConnection.
	DumpStatsInterval time.Duration `yaml:"dump_stats_interval"`
	DumpStatsFile     string        `yaml:"dump_stats_file"`
}

// Default returns Config with every field at its zero-cost default.
// These exist so a minimal config file only needs to set ListenAddr;
// they are not a substitute for the file itself.
func Default() Config {
	return Config{
		Path:       "ws",
		SessionTTL: 5 * time.Minute,
	}
}

// Load reads the YAML file at path, a single source of truth layered
// over Default — no environment variable overrides the file's values,
// matching lib/config's "deterministic, auditable configuration with
// no hidden overrides."
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("%s: listen_addr is required", path)
	}
	return cfg, nil
}

// resolvePath returns the config file path from --config (flagPath,
// empty if not given) or RTC_SIGNAL_CONFIG. There is no further
// fallback: if neither is set, rtc-signal refuses to guess.
func resolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if envPath := os.Getenv("RTC_SIGNAL_CONFIG"); envPath != "" {
		return envPath, nil
	}
	return "", fmt.Errorf("no config file given; set RTC_SIGNAL_CONFIG or pass --config")
}
