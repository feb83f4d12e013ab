package hotkey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brummer10/jalvselect/internal/mainloop"
	"github.com/jezek/xgb/xproto"
)

type fakeDisplay struct {
	mu        sync.Mutex
	conflicts int // number of Grab calls that fail before one succeeds
	grabs     []uint16
	ungrabs   []uint16
	presses   chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeDisplay(conflicts int) *fakeDisplay {
	return &fakeDisplay{
		conflicts: conflicts,
		presses:   make(chan struct{}, 16),
		closed:    make(chan struct{}),
	}
}

func (d *fakeDisplay) Grab(mods uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grabs = append(d.grabs, mods)
	if d.conflicts > 0 {
		d.conflicts--
		return ErrHotkeyConflict
	}
	return nil
}

func (d *fakeDisplay) Ungrab(mods uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ungrabs = append(d.ungrabs, mods)
}

func (d *fakeDisplay) WaitKeyPress() bool {
	select {
	case <-d.presses:
		return true
	case <-d.closed:
		return false
	}
}

func (d *fakeDisplay) Close() {
	d.closeOnce.Do(func() { close(d.closed) })
}

func (d *fakeDisplay) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *fakeDisplay) grabCalls() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint16(nil), d.grabs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not reached before deadline")
}

func opener(d Display) Opener {
	return func() (Display, error) { return d, nil }
}

func TestGrabberDeliversTogglesOnMainLoop(t *testing.T) {
	d := newFakeDisplay(0)
	loop := mainloop.NewLoop()
	toggles := 0
	g := NewGrabber(opener(d), DefaultBinding, loop, func() { toggles++ })

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Stop()

	waitFor(t, func() bool { return g.State() == StateGrabbedPrimary })

	d.presses <- struct{}{}
	d.presses <- struct{}{}

	waitFor(t, func() bool {
		loop.RunPending()
		return toggles == 2
	})

	if calls := d.grabCalls(); len(calls) != 1 || calls[0] != xproto.ModMaskShift {
		t.Errorf("Expected a single Shift grab, got %v", calls)
	}
}

func TestGrabberRetriesOnceWithFallback(t *testing.T) {
	d := newFakeDisplay(1)
	loop := mainloop.NewLoop()
	g := NewGrabber(opener(d), DefaultBinding, loop, func() {})

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Stop()

	waitFor(t, func() bool { return g.State() == StateGrabbedFallback })

	calls := d.grabCalls()
	want := []uint16{xproto.ModMaskShift, xproto.ModMaskControl | xproto.ModMaskShift}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("Expected grabs %v, got %v", want, calls)
	}
	if len(d.ungrabs) != 1 || d.ungrabs[0] != xproto.ModMaskShift {
		t.Errorf("Expected the failed Shift grab to be released, got %v", d.ungrabs)
	}
}

func TestGrabberDisablesAfterSecondConflict(t *testing.T) {
	d := newFakeDisplay(2)
	loop := mainloop.NewLoop()
	toggles := 0
	var disabledErr error
	g := NewGrabber(opener(d), DefaultBinding, loop, func() { toggles++ })
	g.OnDisabled = func(err error) { disabledErr = err }

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The goroutine exits on its own; Stop only joins it.
	waitFor(t, func() bool { return g.State() == StateDisabled })
	g.Stop()

	loop.RunPending()
	if !errors.Is(disabledErr, ErrHotkeyUnavailable) {
		t.Fatalf("Expected OnDisabled with ErrHotkeyUnavailable, got %v", disabledErr)
	}
	if !d.isClosed() {
		t.Error("Expected display connection closed after second conflict")
	}
	if len(d.grabCalls()) != 2 {
		t.Errorf("Expected exactly two grab attempts, got %d", len(d.grabCalls()))
	}

	d.presses <- struct{}{}
	loop.RunPending()
	if toggles != 0 {
		t.Errorf("No toggles may be delivered after disabling, got %d", toggles)
	}
	if g.State() != StateDisabled {
		t.Errorf("Expected disabled state after Stop, got %v", g.State())
	}
}

func TestGrabberOpenFailureDisables(t *testing.T) {
	loop := mainloop.NewLoop()
	g := NewGrabber(func() (Display, error) {
		return nil, errors.New("no DISPLAY")
	}, DefaultBinding, loop, func() {})

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	g.Stop()

	if g.State() != StateDisabled {
		t.Errorf("Expected disabled state, got %v", g.State())
	}
}

func TestGrabberStopJoinsBlockedGoroutine(t *testing.T) {
	d := newFakeDisplay(0)
	g := NewGrabber(opener(d), DefaultBinding, mainloop.NewLoop(), func() {})

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return g.State() == StateGrabbedPrimary })

	stopped := make(chan struct{})
	go func() {
		g.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	if !d.isClosed() {
		t.Error("Expected display closed by Stop")
	}

	g.Stop() // second Stop is a no-op
}

func TestGrabberStartTwice(t *testing.T) {
	g := NewGrabber(opener(newFakeDisplay(0)), DefaultBinding, mainloop.NewLoop(), func() {})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Stop()

	if err := g.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}
}
