/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocklogger

import (
	"fmt"
	"sync"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
)

// MockLogger is a mocked logger that can be used for testing.
type MockLogger struct {
	mu             sync.Mutex
	AllLogContents string
}

func (l *MockLogger) write(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.AllLogContents += level + " " + fmt.Sprintf(msg, args...) + "\n"
}

// Contents returns everything logged so far.
func (l *MockLogger) Contents() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.AllLogContents
}

// Fatalf writes the log line.
func (l *MockLogger) Fatalf(msg string, args ...interface{}) {
	l.write("FATAL", msg, args...)
}

// Panicf writes the log line.
func (l *MockLogger) Panicf(msg string, args ...interface{}) {
	l.write("PANIC", msg, args...)
}

// Debugf writes the log line.
func (l *MockLogger) Debugf(msg string, args ...interface{}) {
	l.write("DEBUG", msg, args...)
}

// Infof writes the log line.
func (l *MockLogger) Infof(msg string, args ...interface{}) {
	l.write("INFO", msg, args...)
}

// Warnf writes the log line.
func (l *MockLogger) Warnf(msg string, args ...interface{}) {
	l.write("WARN", msg, args...)
}

// Errorf writes the log line.
func (l *MockLogger) Errorf(msg string, args ...interface{}) {
	l.write("ERROR", msg, args...)
}

// Provider is a mock logger provider that can be used for testing.
type Provider struct {
	MockLogger *MockLogger
}

// GetLogger returns the mock logger for every module.
func (p *Provider) GetLogger(string) log.Logger {
	return p.MockLogger
}
