package notification

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoDesktop is returned when the platform has no desktop notification tool.
var ErrNoDesktop = errors.New("desktop notifications unavailable")

// appName is shown as the notification source where supported.
const appName = "screentime"

// DesktopNotifier shows native desktop notifications through the platform
// command line tool.
type DesktopNotifier struct {
	command     func(n Notification) (string, []string, bool)
	cmdExecutor func(name string, args ...string) ([]byte, error)
	lookPath    func(file string) (string, error)
}

// NewDesktopNotifier creates a notifier for the current platform.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		command:     desktopCommand,
		cmdExecutor: defaultCmdExecutor,
		lookPath:    exec.LookPath,
	}
}

// sendTimeout bounds one notification tool call.
const sendTimeout = 5 * time.Second

// defaultCmdExecutor runs a command and returns its combined output.
var defaultCmdExecutor = newCmdExecutor(sendTimeout)

// newCmdExecutor returns an executor that kills the command after timeout.
func newCmdExecutor(timeout time.Duration) func(name string, args ...string) ([]byte, error) {
	return func(name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.WaitDelay = timeout
		out, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s timed out after %s: %w", name, timeout, ctx.Err())
		}
		return out, err
	}
}

// Available reports whether the notification tool is installed.
func (n *DesktopNotifier) Available() bool {
	name, _, ok := n.command(Notification{})
	if !ok {
		return false
	}
	_, err := n.lookPath(name)
	return err == nil
}

// Send shows the notification
func (n *DesktopNotifier) Send(notification Notification) error {
	name, args, ok := n.command(notification)
	if !ok {
		return ErrNoDesktop
	}
	if out, err := n.cmdExecutor(name, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// notifySendCommand builds a freedesktop notify-send invocation.
func notifySendCommand(n Notification) (string, []string, bool) {
	return "notify-send", []string{"--app-name", appName, n.Title, n.Message}, true
}

// osascriptCommand builds a macOS "display notification" invocation.
func osascriptCommand(n Notification) (string, []string, bool) {
	script := fmt.Sprintf("display notification %s with title %s",
		appleScriptString(n.Message), appleScriptString(n.Title))
	return "osascript", []string{"-e", script}, true
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
