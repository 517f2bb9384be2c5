// Package notification delivers user-facing notifications.
package notification

import "time"

// Notification represents a notification to be sent.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}

// Backend names accepted by New.
const (
	BackendAuto    = "auto"
	BackendDesktop = "desktop"
	BackendStdout  = "stdout"
	BackendLog     = "log"
)
