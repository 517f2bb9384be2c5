package window

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const processCacheSize = 256

// XdotoolBackend resolves the focused X11 window through xdotool and names it
// after the owning process.
type XdotoolBackend struct {
	cmdExecutor cmdExecutor
	readFile    func(name string) ([]byte, error)
	names       *lru.Cache[int, processEntry]
}

// processEntry remembers a process name together with the start time of the
// process it was read from, so a recycled pid is not given a stale name.
type processEntry struct {
	start uint64
	name  string
}

// NewXdotoolBackend creates an xdotool backed lookup.
func NewXdotoolBackend() *XdotoolBackend {
	names, _ := lru.New[int, processEntry](processCacheSize)
	return &XdotoolBackend{
		cmdExecutor: defaultCmdExecutor,
		readFile:    os.ReadFile,
		names:       names,
	}
}

// ActiveApp implements Backend.
func (b *XdotoolBackend) ActiveApp() (string, error) {
	out, err := b.cmdExecutor("xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", fmt.Errorf("xdotool getwindowpid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return "", fmt.Errorf("parse window pid %q: %w", strings.TrimSpace(string(out)), err)
	}

	name, err := b.processName(pid)
	if err != nil {
		return "", err
	}

	// The title is optional
	title, err := b.cmdExecutor("xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return name, nil
	}
	return label(name, string(title)), nil
}

func (b *XdotoolBackend) processName(pid int) (string, error) {
	start, err := b.startTime(pid)
	if err != nil {
		return "", err
	}
	if entry, ok := b.names.Get(pid); ok && entry.start == start {
		return entry.name, nil
	}
	data, err := b.readFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", fmt.Errorf("read process name for pid %d: %w", pid, err)
	}
	name := strings.TrimSpace(string(data))
	b.names.Add(pid, processEntry{start: start, name: name})
	return name, nil
}

// startTime returns field 22 of /proc/<pid>/stat. The command name in field 2
// may itself contain spaces and parentheses, so fields are counted from the
// last closing parenthesis.
func (b *XdotoolBackend) startTime(pid int) (uint64, error) {
	data, err := b.readFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, fmt.Errorf("read process stat for pid %d: %w", pid, err)
	}
	stat := string(data)
	end := strings.LastIndexByte(stat, ')')
	if end < 0 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(stat[end+1:])
	// fields[0] is field 3 (state).
	const startTimeIndex = 22 - 3
	if len(fields) <= startTimeIndex {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	start, err := strconv.ParseUint(fields[startTimeIndex], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse start time for pid %d: %w", pid, err)
	}
	return start, nil
}
