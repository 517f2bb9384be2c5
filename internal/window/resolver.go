// Package window resolves the application that currently has keyboard focus.
package window

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Unknown is reported whenever the focused application cannot be determined.
const Unknown = "unknown"

// maxTitleRunes bounds the window title appended to the process name.
const maxTitleRunes = 40

// Resolver returns an identifier for the focused application. It never fails;
// anything it cannot determine is reported as Unknown.
type Resolver interface {
	ResolveActiveApp() string
}

// Backend is a platform lookup that may fail.
type Backend interface {
	ActiveApp() (string, error)
}

// cmdExecutor runs an external command and returns its stdout.
type cmdExecutor func(name string, args ...string) ([]byte, error)

// commandTimeout bounds one platform tool call; the resolver runs on the
// tick loop.
const commandTimeout = time.Second

// defaultCmdExecutor executes a command and returns its output.
var defaultCmdExecutor = newCmdExecutor(commandTimeout)

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

// SafeResolver adapts a Backend to the Resolver contract.
type SafeResolver struct {
	backend Backend
	logger  zerolog.Logger
	logOnce rate.Sometimes
}

// NewResolver wraps backend. A nil backend always resolves to Unknown.
func NewResolver(backend Backend, logger zerolog.Logger) *SafeResolver {
	return &SafeResolver{
		backend: backend,
		logger:  logger.With().Str("component", "window").Logger(),
		logOnce: rate.Sometimes{Interval: time.Minute},
	}
}

// NewPlatformResolver returns the resolver for the current operating system.
func NewPlatformResolver(logger zerolog.Logger) *SafeResolver {
	return NewResolver(newPlatformBackend(), logger)
}

// ResolveActiveApp implements Resolver.
func (r *SafeResolver) ResolveActiveApp() (app string) {
	if r.backend == nil {
		return Unknown
	}

	defer func() {
		if p := recover(); p != nil {
			r.logFailure(fmt.Errorf("panic: %v", p))
			app = Unknown
		}
	}()

	name, err := r.backend.ActiveApp()
	if err != nil {
		r.logFailure(err)
		return Unknown
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Unknown
	}
	return name
}

func (r *SafeResolver) logFailure(err error) {
	r.logOnce.Do(func() {
		r.logger.Debug().Err(err).Msg("Failed to resolve active application")
	})
}

// label combines a process name with a shortened window title.
func label(name, title string) string {
	name = strings.TrimSpace(name)
	title = strings.TrimSpace(title)
	if title == "" {
		return name
	}
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	if name == "" {
		return title
	}
	return name + " - " + title
}
