package notification

import "github.com/rs/zerolog"

// LogNotifier writes notifications to the structured log. It is used on
// headless hosts.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notification").Logger()}
}

// Send logs the notification
func (n *LogNotifier) Send(notification Notification) error {
	n.logger.Info().
		Str("title", notification.Title).
		Str("message", notification.Message).
		Msg("Notification")
	return nil
}
