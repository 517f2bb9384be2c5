//go:build linux
// +build linux

package window

// newPlatformBackend creates the X11 backend.
func newPlatformBackend() Backend {
	return NewXdotoolBackend()
}
