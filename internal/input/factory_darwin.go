//go:build darwin
// +build darwin

package input

// newPlatformProber creates the macOS idle prober.
func newPlatformProber() IdleProber {
	return NewIoregProber()
}
