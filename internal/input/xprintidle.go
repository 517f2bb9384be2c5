package input

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// XprintidleProber reads the X11 idle time, reported in milliseconds.
type XprintidleProber struct {
	cmdExecutor cmdExecutor
}

// NewXprintidleProber creates an xprintidle backed prober.
func NewXprintidleProber() *XprintidleProber {
	return &XprintidleProber{cmdExecutor: defaultCmdExecutor}
}

// IdleTime implements IdleProber.
func (p *XprintidleProber) IdleTime() (time.Duration, error) {
	out, err := p.cmdExecutor("xprintidle")
	if err != nil {
		return 0, fmt.Errorf("failed to execute xprintidle: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse xprintidle output: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
