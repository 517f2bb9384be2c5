//go:build !linux && !darwin
// +build !linux,!darwin

package notification

// desktopCommand reports no desktop tool on unsupported platforms.
func desktopCommand(Notification) (string, []string, bool) {
	return "", nil, false
}
