// Package hotkey holds a global key grab on a background goroutine and turns
// every press into a toggle callback scheduled on the main loop.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brummer10/jalvselect/internal/mainloop"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrHotkeyConflict means another client already owns the combination.
	ErrHotkeyConflict = errors.New("hotkey already grabbed by another client")
	// ErrHotkeyUnavailable means both combinations conflicted and the
	// grabber gave up for the rest of the process lifetime.
	ErrHotkeyUnavailable = errors.New("global hotkey unavailable")
)

// Display is a connection to the windowing server owned by one grabber
// goroutine. Close must be safe to call more than once and from another
// goroutine, and must make a blocked WaitKeyPress return false.
type Display interface {
	Grab(mods uint16) error
	Ungrab(mods uint16)
	WaitKeyPress() bool
	Close()
}

// Opener connects to the display. It runs on the grabber goroutine.
type Opener func() (Display, error)

type State int32

const (
	StateUnattempted State = iota
	StateGrabbedPrimary
	StateGrabbedFallback
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUnattempted:
		return "unattempted"
	case StateGrabbedPrimary:
		return "grabbed"
	case StateGrabbedFallback:
		return "grabbed-fallback"
	case StateDisabled:
		return "disabled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Grabber struct {
	open     Opener
	binding  Binding
	sched    mainloop.Scheduler
	onToggle func()

	// OnDisabled, if set, is scheduled on the main loop once the grabber
	// gives up. The error wraps ErrHotkeyUnavailable.
	OnDisabled func(error)

	state atomic.Int32

	mu      sync.Mutex
	display Display
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewGrabber(open Opener, binding Binding, sched mainloop.Scheduler, onToggle func()) *Grabber {
	return &Grabber{
		open:     open,
		binding:  binding,
		sched:    sched,
		onToggle: onToggle,
	}
}

func (g *Grabber) State() State {
	return State(g.state.Load())
}

// Start spawns the grabber goroutine. It returns immediately; grab failures
// are handled on the goroutine.
func (g *Grabber) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done != nil {
		return fmt.Errorf("hotkey grabber already started")
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	go g.run(ctx)
	return nil
}

// Stop cancels the goroutine and waits for it to exit.
func (g *Grabber) Stop() {
	g.mu.Lock()
	if g.done == nil {
		g.mu.Unlock()
		return
	}
	g.cancel()
	if g.display != nil {
		g.display.Close()
	}
	done := g.done
	g.mu.Unlock()

	<-done
	log.Debugf("[HOTKEY] Grabber stopped")
}

func (g *Grabber) run(ctx context.Context) {
	defer close(g.done)

	d, err := g.open()
	if err != nil {
		g.disable(nil, fmt.Errorf("%w: %w", ErrHotkeyUnavailable, err))
		return
	}

	g.mu.Lock()
	if ctx.Err() != nil {
		g.mu.Unlock()
		d.Close()
		return
	}
	g.display = d
	g.mu.Unlock()

	if !g.grab(d) {
		return
	}

	for d.WaitKeyPress() {
		if ctx.Err() != nil {
			break
		}
		g.sched.IdleAdd(g.onToggle)
	}

	d.Ungrab(g.currentMods())
	d.Close()
}

// grab walks the conflict state machine: primary combination, then the
// fallback once, then disabled.
func (g *Grabber) grab(d Display) bool {
	err := d.Grab(g.binding.Mods)
	if err == nil {
		g.state.Store(int32(StateGrabbedPrimary))
		log.Infof("[HOTKEY] Grabbed %s", g.binding)
		return true
	}

	log.Warnf("[HOTKEY] %s: %v, trying %s", g.binding, err, g.binding.FallbackString())
	d.Ungrab(g.binding.Mods)

	err = d.Grab(g.binding.FallbackMods)
	if err == nil {
		g.state.Store(int32(StateGrabbedFallback))
		log.Infof("[HOTKEY] Grabbed %s", g.binding.FallbackString())
		return true
	}

	d.Ungrab(g.binding.FallbackMods)
	g.disable(d, fmt.Errorf("%w: %s: %w", ErrHotkeyUnavailable, g.binding.FallbackString(), err))
	return false
}

func (g *Grabber) disable(d Display, err error) {
	g.state.Store(int32(StateDisabled))
	if d != nil {
		d.Close()
	}
	log.Warnf("[HOTKEY] Global hotkey disabled: %v", err)

	if g.OnDisabled != nil {
		cb := g.OnDisabled
		g.sched.IdleAdd(func() { cb(err) })
	}
}

func (g *Grabber) currentMods() uint16 {
	if g.State() == StateGrabbedFallback {
		return g.binding.FallbackMods
	}
	return g.binding.Mods
}
