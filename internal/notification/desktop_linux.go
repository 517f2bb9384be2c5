//go:build linux
// +build linux

package notification

// desktopCommand uses notify-send on Linux desktops.
func desktopCommand(n Notification) (string, []string, bool) {
	return notifySendCommand(n)
}
