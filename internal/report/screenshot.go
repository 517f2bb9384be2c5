package report

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultScreenshotTimeout bounds a single screenshot command.
const DefaultScreenshotTimeout = 30 * time.Second

// commandRunner executes a shell command and returns its stdout.
type commandRunner func(ctx context.Context, command string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	return cmd.Output()
}

// Screenshotter runs an external screenshot command in the background. The
// command's last line of output names the saved file.
type Screenshotter struct {
	command string
	timeout time.Duration
	sink    Sink
	logger  zerolog.Logger
	run     commandRunner

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewScreenshotter creates a screenshot job for command.
func NewScreenshotter(command string, timeout time.Duration, sink Sink, logger zerolog.Logger) *Screenshotter {
	if timeout <= 0 {
		timeout = DefaultScreenshotTimeout
	}
	return &Screenshotter{
		command: command,
		timeout: timeout,
		sink:    sink,
		logger:  logger.With().Str("component", "screenshot").Logger(),
		run:     defaultCommandRunner,
	}
}

// Job is the scheduler action. It starts the command and returns at once;
// a capture still in progress is not started twice.
func (s *Screenshotter) Job() error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Previous screenshot still running, skipping")
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		s.capture()
	}()
	return nil
}

// Wait blocks until any running capture has finished.
func (s *Screenshotter) Wait() {
	s.wg.Wait()
}

func (s *Screenshotter) capture() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.run(ctx, s.command)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		s.logger.Error().Err(err).Msg("Screenshot command failed")
		return
	}

	name := lastLine(string(out))
	if name == "" {
		name = "Screenshot"
	} else {
		name = filepath.Base(name)
	}

	s.logger.Info().Str("file", name).Dur("duration", time.Since(start)).Msg("Screenshot saved")
	s.sink.Notify("Screenshot saved", fmt.Sprintf("%s saved for monitoring", name))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
