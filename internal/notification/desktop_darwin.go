//go:build darwin
// +build darwin

package notification

// desktopCommand uses osascript on macOS.
func desktopCommand(n Notification) (string, []string, bool) {
	return osascriptCommand(n)
}
