// Package input turns user activity signals into input events for the
// accountant.
package input

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Source delivers input events by calling record. Start must not block;
// Stop detaches the source and is safe to call more than once.
type Source interface {
	Name() string
	Start(ctx context.Context, record func()) error
	Stop()
}

// cmdExecutor runs an external command and returns its stdout.
type cmdExecutor func(name string, args ...string) ([]byte, error)

// idleQueryTimeout bounds one idle-time query.
const idleQueryTimeout = time.Second

// defaultCmdExecutor executes a command and returns its output.
var defaultCmdExecutor = newCmdExecutor(idleQueryTimeout)

// newCmdExecutor returns an executor that kills the command after timeout.
func newCmdExecutor(timeout time.Duration) cmdExecutor {
	return func(name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.WaitDelay = timeout
		out, err := cmd.Output()
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s timed out after %s: %w", name, timeout, ctx.Err())
		}
		return out, err
	}
}

// ManualSource forwards events triggered in-process, for example from a
// signal handler or a test.
type ManualSource struct {
	mu     sync.Mutex
	record func()
}

// NewManualSource creates a detached manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Name implements Source.
func (m *ManualSource) Name() string { return "manual" }

// Start implements Source.
func (m *ManualSource) Start(_ context.Context, record func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = record
	return nil
}

// Stop implements Source.
func (m *ManualSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
}

// Trigger reports one input event. It is a no-op while detached.
func (m *ManualSource) Trigger() {
	m.mu.Lock()
	record := m.record
	m.mu.Unlock()
	if record != nil {
		record()
	}
}
