package input

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IoregProber reads HIDIdleTime from the macOS IOHIDSystem registry entry.
type IoregProber struct {
	cmdExecutor cmdExecutor
}

// NewIoregProber creates an ioreg backed prober.
func NewIoregProber() *IoregProber {
	return &IoregProber{cmdExecutor: defaultCmdExecutor}
}

// IdleTime implements IdleProber.
func (p *IoregProber) IdleTime() (time.Duration, error) {
	output, err := p.cmdExecutor("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("failed to execute ioreg: %w", err)
	}

	idleNanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, fmt.Errorf("failed to parse HIDIdleTime: %w", err)
	}

	return time.Duration(idleNanos), nil
}

// parseHIDIdleTime parses the HIDIdleTime from ioreg output.
// Format: "HIDIdleTime" = 123456789
func parseHIDIdleTime(output []byte) (int64, error) {
	for _, line := range bytes.Split(output, []byte("\n")) {
		lineStr := string(bytes.TrimSpace(line))
		if !strings.Contains(lineStr, "HIDIdleTime") {
			continue
		}
		parts := strings.Split(lineStr, "=")
		if len(parts) != 2 {
			continue
		}

		valueStr := strings.Trim(strings.TrimSpace(parts[1]), "\"")
		value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse idle time value: %w", err)
		}
		return value, nil
	}

	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}
