package input

import (
	"time"

	"github.com/rs/zerolog"
)

// NewPlatformSources returns the input sources available on this operating
// system. The result may be empty.
func NewPlatformSources(interval time.Duration, logger zerolog.Logger) []Source {
	prober := newPlatformProber()
	if prober == nil {
		return nil
	}
	return []Source{NewIdlePoller(prober, interval, logger)}
}
