//go:build linux
// +build linux

package input

// newPlatformProber creates the X11 idle prober.
func newPlatformProber() IdleProber {
	return NewXprintidleProber()
}
