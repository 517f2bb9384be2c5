package notification

import (
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications to a writer, stdout by default.
type StdoutNotifier struct {
	out io.Writer
}

// NewStdoutNotifier creates a new stdout notifier
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{out: os.Stdout}
}

// Send prints the notification
func (n *StdoutNotifier) Send(notification Notification) error {
	_, err := fmt.Fprintf(n.out, "[NOTIFICATION] %s: %s\n", notification.Title, notification.Message)
	return err
}
