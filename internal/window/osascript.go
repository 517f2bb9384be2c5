package window

import (
	"fmt"
	"strings"
)

const frontmostScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set winTitle to ""
	try
		set winTitle to name of front window of frontApp
	end try
end tell
return appName & linefeed & winTitle`

// OsascriptBackend resolves the frontmost macOS application.
type OsascriptBackend struct {
	cmdExecutor cmdExecutor
}

// NewOsascriptBackend creates an osascript backed lookup.
func NewOsascriptBackend() *OsascriptBackend {
	return &OsascriptBackend{cmdExecutor: defaultCmdExecutor}
}

// ActiveApp implements Backend.
func (b *OsascriptBackend) ActiveApp() (string, error) {
	out, err := b.cmdExecutor("osascript", "-e", frontmostScript)
	if err != nil {
		return "", fmt.Errorf("osascript: %w", err)
	}
	name, title, _ := strings.Cut(strings.TrimRight(string(out), "\n"), "\n")
	return label(name, title), nil
}
