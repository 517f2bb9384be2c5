package activity

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/input"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/window"
	"github.com/rs/zerolog"
)

const epsilon = 1e-9

// memoryStore is an in-memory DayStore that records every write.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]storage.DayRecord
	writes  []storage.DayRecord
	err     error
	block   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]storage.DayRecord)}
}

func (m *memoryStore) WriteDayRecord(ctx context.Context, record storage.DayRecord) error {
	m.mu.Lock()
	block, err := m.block, m.err
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Day] = record.Clone()
	m.writes = append(m.writes, record.Clone())
	return nil
}

func (m *memoryStore) GetDayRecord(_ context.Context, day string) (*storage.DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[day]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := record.Clone()
	return &clone, nil
}

func (m *memoryStore) ListDayRecords(context.Context) ([]storage.DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]storage.DayRecord, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (m *memoryStore) DeleteDayRecordsBefore(context.Context, string) (int, error) {
	return 0, nil
}

func (m *memoryStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// sequenceResolver returns apps in rotation.
type sequenceResolver struct {
	mu   sync.Mutex
	apps []string
	next int
}

func (s *sequenceResolver) ResolveActiveApp() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	app := s.apps[s.next%len(s.apps)]
	s.next++
	return app
}

type panicResolver struct{}

func (panicResolver) ResolveActiveApp() string { panic("no display") }

type funcResolver func() string

func (f funcResolver) ResolveActiveApp() string { return f() }

func localTime(year int, month time.Month, day, hour, minute, sec int) time.Time {
	return time.Date(year, month, day, hour, minute, sec, 0, time.Local)
}

func newTestAccountant(t *testing.T, cfg Config, resolver window.Resolver, store storage.DayStore, start time.Time) (*Accountant, *clock.TestClock) {
	t.Helper()

	clk := clock.NewTestClock(start)
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 5 * time.Minute
	}
	return NewAccountant(cfg, resolver, store, clk, zerolog.Nop()), clk
}

// activeTick advances the clock, records input and ticks.
func activeTick(a *Accountant, clk *clock.TestClock, d time.Duration) time.Time {
	now := clk.Advance(d)
	a.RecordInput()
	a.Tick(now)
	return now
}

func sumApps(s ActivitySnapshot) float64 {
	var sum float64
	for _, seconds := range s.PerAppSeconds {
		sum += seconds
	}
	return sum
}

func TestTickAccumulatesConstantDelta(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
		ticks int
	}{
		{name: "one second", delta: time.Second, ticks: 120},
		{name: "half second", delta: 500 * time.Millisecond, ticks: 33},
		{name: "uneven", delta: 1300 * time.Millisecond, ticks: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, nil, localTime(2024, 3, 4, 10, 0, 0))

			for i := 0; i < tt.ticks; i++ {
				activeTick(a, clk, tt.delta)
			}

			got := a.Snapshot().ActiveSeconds
			want := float64(tt.ticks) * tt.delta.Seconds()
			if math.Abs(got-want) > 1e-6 {
				t.Fatalf("expected %v active seconds, got %v", want, got)
			}
		})
	}
}

func TestPerAppSumMatchesTotal(t *testing.T) {
	resolver := &sequenceResolver{apps: []string{"firefox", "code", "", "terminal", "code"}}
	a, clk := newTestAccountant(t, Config{}, resolver, nil, localTime(2024, 3, 4, 10, 0, 0))

	for i := 0; i < 50; i++ {
		if i%7 == 0 {
			// idle tick, no input for longer than the threshold
			clk.Advance(6 * time.Minute)
			a.Tick(clk.Now())
			continue
		}
		activeTick(a, clk, time.Duration(200+i*37)*time.Millisecond)

		snap := a.Snapshot()
		if math.Abs(sumApps(snap)-snap.ActiveSeconds) > epsilon {
			t.Fatalf("tick %d: per-app sum %v != active %v", i, sumApps(snap), snap.ActiveSeconds)
		}
	}

	snap := a.Snapshot()
	if _, ok := snap.PerAppSeconds[window.Unknown]; !ok {
		t.Error("expected empty resolver output to be counted as unknown")
	}
	if _, ok := snap.PerAppSeconds[""]; ok {
		t.Error("empty app identifier must not be used as a bucket")
	}
}

func TestIdleTickDoesNotAccumulate(t *testing.T) {
	start := localTime(2024, 3, 4, 9, 0, 0)
	a, clk := newTestAccountant(t, Config{IdleThreshold: 5 * time.Minute, MaxTickDelta: time.Hour}, &sequenceResolver{apps: []string{"code"}}, nil, start)

	a.RecordInput()
	now := clk.Advance(6 * time.Minute)
	a.Tick(now)

	if got := a.Snapshot().ActiveSeconds; got != 0 {
		t.Fatalf("expected no active time after 6 idle minutes, got %v", got)
	}

	// Input resumes; only the next tick's delta counts.
	activeTick(a, clk, time.Second)
	if got := a.Snapshot().ActiveSeconds; math.Abs(got-1) > epsilon {
		t.Fatalf("expected 1 active second after input resumed, got %v", got)
	}
}

func TestIdleThresholdBoundary(t *testing.T) {
	start := localTime(2024, 3, 4, 9, 0, 0)
	a, clk := newTestAccountant(t, Config{IdleThreshold: 5 * time.Minute, MaxTickDelta: time.Hour}, &sequenceResolver{apps: []string{"code"}}, nil, start)

	a.RecordInput()
	clk.Advance(5 * time.Minute)
	a.Tick(clk.Now())

	// Exactly at the threshold is still active.
	if got := a.Snapshot().ActiveSeconds; got != 300 {
		t.Fatalf("expected 300 active seconds at the threshold, got %v", got)
	}
}

func TestZeroIdleThreshold(t *testing.T) {
	clk := clock.NewTestClock(localTime(2024, 3, 4, 9, 0, 0))
	a := NewAccountant(Config{IdleThreshold: 0}, &sequenceResolver{apps: []string{"code"}}, nil, clk, zerolog.Nop())

	// Input at the tick instant counts.
	activeTick(a, clk, time.Second)
	if got := a.Snapshot().ActiveSeconds; got != 1 {
		t.Fatalf("expected 1 second with input at the tick instant, got %v", got)
	}

	// Any gap without input is idle.
	clk.Advance(time.Second)
	a.Tick(clk.Now())
	if got := a.Snapshot().ActiveSeconds; got != 1 {
		t.Fatalf("expected idle tick with zero threshold, got %v", got)
	}
}

func TestClockAnomalies(t *testing.T) {
	start := localTime(2024, 3, 4, 9, 0, 0)

	t.Run("negative delta clamped", func(t *testing.T) {
		a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, nil, start)
		activeTick(a, clk, time.Second)

		activeTick(a, clk, -30*time.Second)
		if got := a.Snapshot().ActiveSeconds; got != 1 {
			t.Fatalf("expected backwards clock to add nothing, got %v", got)
		}

		// Next tick measures from the adjusted clock.
		activeTick(a, clk, time.Second)
		if got := a.Snapshot().ActiveSeconds; got != 2 {
			t.Fatalf("expected 2 seconds after recovery, got %v", got)
		}
	})

	t.Run("long gap capped", func(t *testing.T) {
		a, clk := newTestAccountant(t, Config{TickInterval: time.Second}, &sequenceResolver{apps: []string{"code"}}, nil, start)
		activeTick(a, clk, 2*time.Hour)

		if got := a.Snapshot().ActiveSeconds; got != 5 {
			t.Fatalf("expected delta capped at 5 tick intervals, got %v", got)
		}
	})
}

func TestClockSteppedBackAcrossMidnight(t *testing.T) {
	store := newMemoryStore()
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, store, localTime(2024, 1, 1, 23, 59, 0))

	for i := 0; i < 60; i++ {
		activeTick(a, clk, time.Second)
	}
	if store.writeCount() != 1 {
		t.Fatalf("expected rollover write at midnight, got %d writes", store.writeCount())
	}

	// NTP-style correction back into the previous day.
	clk.Set(localTime(2024, 1, 1, 23, 59, 52))
	a.RecordInput()
	a.Tick(clk.Now())

	if got := a.Snapshot().DayKey(); got != "2024-01-02" {
		t.Fatalf("expected current day to stay 2024-01-02, got %s", got)
	}

	for i := 0; i < 10; i++ {
		activeTick(a, clk, time.Second)
	}

	if store.writeCount() != 1 {
		t.Fatalf("expected no further day record writes, got %d", store.writeCount())
	}
	record, err := store.GetDayRecord(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("get 2024-01-01: %v", err)
	}
	if record.ActiveSeconds != 60 {
		t.Fatalf("expected stored 2024-01-01 record to keep 60 seconds, got %v", record.ActiveSeconds)
	}

	snap := a.Snapshot()
	if snap.DayKey() != "2024-01-02" || snap.ActiveSeconds != 10 {
		t.Fatalf("expected 10 seconds credited to 2024-01-02, got %s %v", snap.DayKey(), snap.ActiveSeconds)
	}
	if sumApps(snap) != snap.ActiveSeconds {
		t.Fatalf("per-app sum %v != total %v", sumApps(snap), snap.ActiveSeconds)
	}
}

func TestRolloverPersistsPreviousDay(t *testing.T) {
	store := newMemoryStore()
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"firefox"}}, store, localTime(2024, 1, 1, 23, 59, 50))

	for i := 0; i < 9; i++ {
		activeTick(a, clk, time.Second)
	}
	if got := a.Snapshot().ActiveSeconds; got != 9 {
		t.Fatalf("expected 9 seconds before midnight, got %v", got)
	}

	// 23:59:59 -> 00:00:00, the whole tick lies before midnight.
	activeTick(a, clk, time.Second)

	if store.writeCount() != 1 {
		t.Fatalf("expected exactly one day record write, got %d", store.writeCount())
	}
	record, err := store.GetDayRecord(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("expected record for 2024-01-01: %v", err)
	}
	if record.ActiveSeconds != 10 || record.PerApp["firefox"] != 10 {
		t.Fatalf("unexpected record %+v", record)
	}

	snap := a.Snapshot()
	if snap.DayKey() != "2024-01-02" {
		t.Fatalf("expected current day 2024-01-02, got %s", snap.DayKey())
	}
	if snap.ActiveSeconds != 0 || len(snap.PerAppSeconds) != 0 {
		t.Fatalf("expected counters reset after rollover, got %+v", snap)
	}

	for i := 0; i < 5; i++ {
		activeTick(a, clk, time.Second)
	}
	if got := a.Snapshot().ActiveSeconds; got != 5 {
		t.Fatalf("expected only post-rollover accumulation, got %v", got)
	}
	if store.writeCount() != 1 {
		t.Fatalf("rollover must happen once per date change, got %d writes", store.writeCount())
	}
}

func TestRolloverSplitsTickAtMidnight(t *testing.T) {
	store := newMemoryStore()
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, store, localTime(2024, 1, 1, 23, 59, 59))

	// 23:59:59 -> 00:00:02
	activeTick(a, clk, 3*time.Second)

	record, err := store.GetDayRecord(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("expected record for 2024-01-01: %v", err)
	}
	if record.ActiveSeconds != 1 {
		t.Fatalf("expected 1 second credited before midnight, got %v", record.ActiveSeconds)
	}
	if got := a.Snapshot().ActiveSeconds; got != 2 {
		t.Fatalf("expected 2 seconds credited after midnight, got %v", got)
	}
}

func TestRolloverWhileIdle(t *testing.T) {
	store := newMemoryStore()
	start := localTime(2024, 1, 1, 23, 0, 0)
	a, clk := newTestAccountant(t, Config{IdleThreshold: time.Minute}, &sequenceResolver{apps: []string{"code"}}, store, start)

	activeTick(a, clk, time.Second)

	// Machine left alone past midnight.
	clk.Set(localTime(2024, 1, 2, 0, 30, 0))
	a.Tick(clk.Now())

	record, err := store.GetDayRecord(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("expected record for 2024-01-01: %v", err)
	}
	if record.ActiveSeconds != 1 {
		t.Fatalf("expected 1 active second for 2024-01-01, got %v", record.ActiveSeconds)
	}
	if got := a.Snapshot(); got.ActiveSeconds != 0 || got.DayKey() != "2024-01-02" {
		t.Fatalf("unexpected snapshot after idle rollover: %+v", got)
	}
}

func TestRolloverStoreFailureIsBestEffort(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("disk full")

	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, store, localTime(2024, 1, 1, 23, 59, 58))
	activeTick(a, clk, time.Second)
	activeTick(a, clk, 2*time.Second)

	snap := a.Snapshot()
	if snap.DayKey() != "2024-01-02" {
		t.Fatalf("expected rollover despite store failure, got day %s", snap.DayKey())
	}
	if snap.ActiveSeconds != 1 {
		t.Fatalf("expected 1 second on the new day, got %v", snap.ActiveSeconds)
	}
}

func TestRolloverStoreTimeoutBounded(t *testing.T) {
	store := newMemoryStore()
	store.block = true

	a, clk := newTestAccountant(t, Config{StoreTimeout: 50 * time.Millisecond}, &sequenceResolver{apps: []string{"code"}}, store, localTime(2024, 1, 1, 23, 59, 59))

	done := make(chan struct{})
	go func() {
		activeTick(a, clk, 2*time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick stalled on a slow store")
	}

	// The lock is not held during the write.
	if got := a.Snapshot().DayKey(); got != "2024-01-02" {
		t.Fatalf("expected day 2024-01-02, got %s", got)
	}
}

func TestResolverFailuresMapToUnknown(t *testing.T) {
	tests := []struct {
		name     string
		resolver window.Resolver
	}{
		{name: "nil resolver", resolver: nil},
		{name: "empty result", resolver: funcResolver(func() string { return "" })},
		{name: "panic", resolver: panicResolver{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, clk := newTestAccountant(t, Config{}, tt.resolver, nil, localTime(2024, 3, 4, 10, 0, 0))
			activeTick(a, clk, time.Second)

			snap := a.Snapshot()
			if snap.PerAppSeconds[window.Unknown] != 1 {
				t.Fatalf("expected 1 second under %q, got %v", window.Unknown, snap.PerAppSeconds)
			}
		})
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, nil, localTime(2024, 3, 4, 10, 0, 0))
	activeTick(a, clk, time.Second)

	snap := a.Snapshot()
	snap.PerAppSeconds["code"] = 1000
	snap.PerAppSeconds["injected"] = 5

	again := a.Snapshot()
	if again.PerAppSeconds["code"] != 1 {
		t.Fatalf("snapshot mutation leaked into accountant: %v", again.PerAppSeconds)
	}
	if _, ok := again.PerAppSeconds["injected"]; ok {
		t.Fatal("snapshot mutation leaked into accountant")
	}
}

func TestResetDoesNotPersist(t *testing.T) {
	store := newMemoryStore()
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code"}}, store, localTime(2024, 3, 4, 10, 0, 0))
	activeTick(a, clk, time.Second)

	clk.Set(localTime(2024, 3, 5, 8, 0, 0))
	a.Reset()

	snap := a.Snapshot()
	if snap.ActiveSeconds != 0 || len(snap.PerAppSeconds) != 0 {
		t.Fatalf("expected zero counters after reset, got %+v", snap)
	}
	if snap.DayKey() != "2024-03-05" {
		t.Fatalf("expected reset to move to today, got %s", snap.DayKey())
	}
	if store.writeCount() != 0 {
		t.Fatalf("reset must not persist, got %d writes", store.writeCount())
	}
}

func TestCheckpointAndResume(t *testing.T) {
	store := newMemoryStore()
	start := localTime(2024, 3, 4, 10, 0, 0)
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"code", "firefox"}}, store, start)

	for i := 0; i < 4; i++ {
		activeTick(a, clk, time.Second)
	}
	if err := a.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint(): %v", err)
	}
	if got := a.Snapshot().ActiveSeconds; got != 4 {
		t.Fatalf("checkpoint must not reset counters, got %v", got)
	}

	// A restarted process picks up where the first left off.
	restarted := NewAccountant(Config{IdleThreshold: 5 * time.Minute}, &sequenceResolver{apps: []string{"code"}}, store, clk, zerolog.Nop())
	if err := restarted.Resume(context.Background()); err != nil {
		t.Fatalf("Resume(): %v", err)
	}

	snap := restarted.Snapshot()
	if snap.ActiveSeconds != 4 || snap.PerAppSeconds["code"] != 2 || snap.PerAppSeconds["firefox"] != 2 {
		t.Fatalf("unexpected resumed snapshot %+v", snap)
	}
}

func TestResumeNormalizesRecord(t *testing.T) {
	store := newMemoryStore()
	start := localTime(2024, 3, 4, 10, 0, 0)
	_ = store.WriteDayRecord(context.Background(), storage.DayRecord{
		Day:           "2024-03-04",
		ActiveSeconds: 100,
		PerApp:        map[string]float64{"code": 60, "broken": -5},
	})

	a, _ := newTestAccountant(t, Config{}, nil, store, start)
	if err := a.Resume(context.Background()); err != nil {
		t.Fatalf("Resume(): %v", err)
	}

	snap := a.Snapshot()
	if snap.ActiveSeconds != 100 {
		t.Fatalf("expected 100 active seconds, got %v", snap.ActiveSeconds)
	}
	if math.Abs(sumApps(snap)-snap.ActiveSeconds) > epsilon {
		t.Fatalf("per-app sum %v != active %v", sumApps(snap), snap.ActiveSeconds)
	}
	if snap.PerAppSeconds[window.Unknown] != 40 {
		t.Fatalf("expected unattributed time under unknown, got %v", snap.PerAppSeconds)
	}
}

func TestResumeMissingRecord(t *testing.T) {
	a, _ := newTestAccountant(t, Config{}, nil, newMemoryStore(), localTime(2024, 3, 4, 10, 0, 0))
	if err := a.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() with no stored record: %v", err)
	}
}

func TestStartStopWait(t *testing.T) {
	clk := clock.RealClock{}
	src := input.NewManualSource()

	var ticks sync.WaitGroup
	ticks.Add(1)
	var once sync.Once
	resolver := funcResolver(func() string {
		once.Do(ticks.Done)
		return "code"
	})

	a := NewAccountant(Config{IdleThreshold: time.Minute, TickInterval: 10 * time.Millisecond}, resolver, nil, clk, zerolog.Nop())
	a.AddSource(src)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	src.Trigger()
	waitOrFail(t, &ticks)

	a.Stop()
	a.Stop()

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick loop did not exit after Stop")
	}

	before := a.LastActivity()
	src.Trigger()
	if !a.LastActivity().Equal(before) {
		t.Fatal("input source still attached after Stop")
	}
}

func TestStopFromTickCallback(t *testing.T) {
	var a *Accountant
	stopped := make(chan struct{})
	var once sync.Once
	resolver := funcResolver(func() string {
		once.Do(func() {
			a.Stop()
			close(stopped)
		})
		return "code"
	})

	a = NewAccountant(Config{IdleThreshold: time.Minute, TickInterval: 10 * time.Millisecond}, resolver, nil, clock.RealClock{}, zerolog.Nop())
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start(): %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from within a tick deadlocked")
	}

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick loop did not exit")
	}
}

func TestConcurrentInputAndTicks(t *testing.T) {
	a, clk := newTestAccountant(t, Config{}, &sequenceResolver{apps: []string{"a", "b"}}, nil, localTime(2024, 3, 4, 10, 0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				a.RecordInput()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			_ = a.Snapshot()
		}
	}()

	for i := 0; i < 200; i++ {
		activeTick(a, clk, 100*time.Millisecond)
	}
	wg.Wait()

	snap := a.Snapshot()
	if math.Abs(snap.ActiveSeconds-20) > 1e-6 {
		t.Fatalf("expected 20 active seconds, got %v", snap.ActiveSeconds)
	}
	if math.Abs(sumApps(snap)-snap.ActiveSeconds) > 1e-6 {
		t.Fatalf("per-app sum %v != active %v", sumApps(snap), snap.ActiveSeconds)
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}
