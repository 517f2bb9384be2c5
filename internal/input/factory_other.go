//go:build !linux && !darwin
// +build !linux,!darwin

package input

// newPlatformProber reports no idle prober for unsupported platforms.
func newPlatformProber() IdleProber {
	return nil
}
