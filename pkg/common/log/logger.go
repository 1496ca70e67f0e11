/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides module based leveled logging for the holder agent.
package log

import (
	"github.com/hyperledger/aries-framework-go/component/log"
	spilog "github.com/hyperledger/aries-framework-go/spi/log"
)

// Log is a module scoped logger.
type Log = log.Log

// Level is a logging level.
type Level = spilog.Level

// Logger is the logger interface implemented by Log and by custom providers.
type Logger = spilog.Logger

// LoggerProvider creates module loggers.
type LoggerProvider = spilog.LoggerProvider

// Logging levels.
const (
	CRITICAL = spilog.CRITICAL
	ERROR    = spilog.ERROR
	WARNING  = spilog.WARNING
	INFO     = spilog.INFO
	DEBUG    = spilog.DEBUG
)

// New creates a logger for the given module. The underlying logger is created on first use.
func New(module string) *Log {
	return log.New(module)
}

// Initialize replaces the default logger provider. It must be called before any line is logged.
func Initialize(l LoggerProvider) {
	log.Initialize(l)
}

// SetLevel sets the level of a module. An empty module sets the default level.
func SetLevel(module string, level Level) {
	log.SetLevel(module, level)
}

// GetLevel returns the level of a module.
func GetLevel(module string) Level {
	return log.GetLevel(module)
}

// IsEnabledFor reports whether the module logs at level.
func IsEnabledFor(module string, level Level) bool {
	return log.IsEnabledFor(module, level)
}

// ParseLevel parses a level name such as "debug" or "WARNING".
func ParseLevel(level string) (Level, error) {
	return log.ParseLevel(level)
}
