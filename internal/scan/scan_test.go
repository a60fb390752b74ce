package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/events"
)

type fakeTrigger struct {
	mu            sync.Mutex
	triggerCalls  int
	triggerErr    error
	scanningSeq   []bool // consumed in order by IsScanning; last value repeats once exhausted
	scanningCalls int
}

func (f *fakeTrigger) TriggerScan(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggerCalls++
	return f.triggerErr
}

func (f *fakeTrigger) IsScanning(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scanningSeq) == 0 {
		return false, nil
	}
	i := f.scanningCalls
	if i >= len(f.scanningSeq) {
		i = len(f.scanningSeq) - 1
	}
	f.scanningCalls++
	return f.scanningSeq[i], nil
}

func (f *fakeTrigger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggerCalls
}

func waitForEvent(t *testing.T, ch <-chan events.Event, want events.Type, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-ch:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
}

func TestRequestScanDebouncesRepeatedCalls(t *testing.T) {
	trigger := &fakeTrigger{}
	bus := events.NewBus()
	ch := bus.Subscribe(16)
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: 20 * time.Millisecond, ProbeInterval: time.Hour, MaxScanTime: time.Hour})
	defer c.Shutdown()

	c.RequestScan("download 1")
	c.RequestScan("download 2")
	c.RequestScan("download 3")

	waitForEvent(t, ch, events.ScanStarted, 200*time.Millisecond)

	if got := trigger.calls(); got != 1 {
		t.Errorf("expected exactly 1 TriggerScan call from 3 debounced requests, got %d", got)
	}
}

func TestRequestScanWhileInProgressQueuesFollowUp(t *testing.T) {
	trigger := &fakeTrigger{scanningSeq: []bool{false}}
	bus := events.NewBus()
	ch := bus.Subscribe(16)
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: 5 * time.Millisecond, ProbeInterval: 10 * time.Millisecond, MaxScanTime: time.Hour})
	defer c.Shutdown()

	c.RequestScan("initial")
	waitForEvent(t, ch, events.ScanStarted, 200*time.Millisecond)

	c.RequestScan("download during scan")
	status := c.Status()
	if !status.DownloadsDuringScan {
		t.Error("expected downloadsDuringScan to be set while a scan is in progress")
	}

	completed := waitForEvent(t, ch, events.ScanCompleted, 500*time.Millisecond)
	payload := completed.Payload.(events.ScanCompletedPayload)
	if !payload.DownloadsDuringScan {
		t.Error("expected first ScanCompleted to report downloads occurred during the scan")
	}

	// A follow-up scan should fire automatically.
	waitForEvent(t, ch, events.ScanStarted, 500*time.Millisecond)
}

func TestProbeLoopStopsWhenServerReportsNotScanning(t *testing.T) {
	trigger := &fakeTrigger{scanningSeq: []bool{true, true, false}}
	bus := events.NewBus()
	ch := bus.Subscribe(16)
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: 5 * time.Millisecond, ProbeInterval: 10 * time.Millisecond, MaxScanTime: time.Hour})
	defer c.Shutdown()

	c.RequestScan("initial")
	completed := waitForEvent(t, ch, events.ScanCompleted, time.Second)
	payload := completed.Payload.(events.ScanCompletedPayload)
	if payload.TimedOut {
		t.Error("expected scan to complete normally, not via timeout")
	}
	if payload.DownloadsDuringScan {
		t.Error("expected no downloads during this scan")
	}
}

func TestProbeLoopStopsOnMaxScanTimeout(t *testing.T) {
	// Always reports scanning=true so the only way out is the hard timeout.
	trigger := &fakeTrigger{scanningSeq: []bool{true}}
	bus := events.NewBus()
	ch := bus.Subscribe(16)
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: 5 * time.Millisecond, ProbeInterval: 10 * time.Millisecond, MaxScanTime: 25 * time.Millisecond})
	defer c.Shutdown()

	c.RequestScan("initial")
	completed := waitForEvent(t, ch, events.ScanCompleted, time.Second)
	payload := completed.Payload.(events.ScanCompletedPayload)
	if !payload.TimedOut {
		t.Error("expected ScanCompleted to report a timeout")
	}
}

func TestForceScanBypassesDebounce(t *testing.T) {
	trigger := &fakeTrigger{scanningSeq: []bool{false}}
	bus := events.NewBus()
	ch := bus.Subscribe(16)
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: time.Hour, ProbeInterval: 10 * time.Millisecond, MaxScanTime: time.Hour})
	defer c.Shutdown()

	c.ForceScan("manual rescan")
	waitForEvent(t, ch, events.ScanStarted, 200*time.Millisecond)

	if got := trigger.calls(); got != 1 {
		t.Errorf("expected ForceScan to call TriggerScan immediately, got %d calls", got)
	}
}

func TestAddCompletionCallbackFiresOnProbeTicks(t *testing.T) {
	trigger := &fakeTrigger{scanningSeq: []bool{true, false}}
	bus := events.NewBus()
	c := NewCoordinator(context.Background(), trigger, bus, Opts{DebounceDelay: 5 * time.Millisecond, ProbeInterval: 10 * time.Millisecond, MaxScanTime: time.Hour})
	defer c.Shutdown()

	var calls int
	var mu sync.Mutex
	c.AddCompletionCallback(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	ch := bus.Subscribe(16)
	c.RequestScan("initial")
	waitForEvent(t, ch, events.ScanCompleted, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("expected completion callback to fire at least once")
	}
}
