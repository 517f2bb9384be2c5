//go:build !linux && !darwin
// +build !linux,!darwin

package window

// newPlatformBackend reports no backend; every lookup resolves to Unknown.
func newPlatformBackend() Backend {
	return nil
}
