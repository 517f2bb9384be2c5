//go:build darwin
// +build darwin

package window

// newPlatformBackend creates the macOS backend.
func newPlatformBackend() Backend {
	return NewOsascriptBackend()
}
