// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package piolog bridges github.com/pion/logging's LoggerFactory
// interface to log/slog, so every wrapped pion transport (ice, dtls,
// srtp, sctp, turn) reports through the same structured sink the rest
// of this module uses.
package piolog

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// Factory adapts a *slog.Logger into a logging.LoggerFactory. Pass it
// to ice.AgentConfig.LoggerFactory, dtls.Config.LoggerFactory, and so
// on.
type Factory struct {
	Base *slog.Logger
}

// NewFactory returns a Factory bridging base. A nil base falls back to
// slog.Default().
func NewFactory(base *slog.Logger) *Factory {
	if base == nil {
		base = slog.Default()
	}
	return &Factory{Base: base}
}

// NewLogger implements logging.LoggerFactory.
func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{log: f.Base.With("scope", scope)}
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) Trace(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Debug(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Info(msg string) { l.log.Info(msg) }
func (l *leveledLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Warn(msg string) { l.log.Warn(msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Error(msg string) { l.log.Error(msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}
