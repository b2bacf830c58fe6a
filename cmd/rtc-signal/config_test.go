// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsThenOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtc-signal.yaml")
	yaml := "listen_addr: \":9000\"\nsession_ttl: 30s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9000")
	}
	if cfg.SessionTTL != 30*time.Second {
		t.Fatalf("SessionTTL = %v, want 30s", cfg.SessionTTL)
	}
	if cfg.Path != "ws" {
		t.Fatalf("Path = %q, want default %q", cfg.Path, "ws")
	}
}

func TestLoadRejectsMissingListenAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtc-signal.yaml")
	if err := os.WriteFile(path, []byte("path: ws\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() with listen_addr cleared to empty should fail")
	}
}

func TestResolvePathPrefersFlag(t *testing.T) {
	t.Setenv("RTC_SIGNAL_CONFIG", "/from/env.yaml")

	got, err := resolvePath("/from/flag.yaml")
	if err != nil {
		t.Fatalf("resolvePath() error = %v", err)
	}
	if got != "/from/flag.yaml" {
		t.Fatalf("resolvePath() = %q, want flag path", got)
	}
}

func TestResolvePathFallsBackToEnv(t *testing.T) {
	t.Setenv("RTC_SIGNAL_CONFIG", "/from/env.yaml")

	got, err := resolvePath("")
	if err != nil {
		t.Fatalf("resolvePath() error = %v", err)
	}
	if got != "/from/env.yaml" {
		t.Fatalf("resolvePath() = %q, want env path", got)
	}
}

func TestResolvePathErrorsWithNeither(t *testing.T) {
	t.Setenv("RTC_SIGNAL_CONFIG", "")

	if _, err := resolvePath(""); err == nil {
		t.Fatal("resolvePath() with neither flag nor env set should error")
	}
}
