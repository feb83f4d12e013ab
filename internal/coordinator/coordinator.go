// Package coordinator implements the shown/hidden state machine of the main
// window.
package coordinator

import (
	log "github.com/sirupsen/logrus"
)

// Window is the part of the toplevel the coordinator drives.
type Window interface {
	IsIconifiedOrWithdrawn() bool
	Move(x, y int)
	Position() (x, y int)
	Present()
	Hide()
}

type State int

const (
	Shown State = iota
	Hidden
)

func (s State) String() string {
	if s == Hidden {
		return "hidden"
	}
	return "shown"
}

// Coordinator remembers where the window was when it was last hidden and
// puts it back there when it is shown again. All methods run on the main
// loop.
type Coordinator struct {
	win Window

	x, y   int
	hasPos bool

	// startHidden skips the first restore: the window never had a position
	// of its own.
	startHidden bool
}

func New(win Window, startHidden bool) *Coordinator {
	return &Coordinator{win: win, startHidden: startHidden}
}

func (c *Coordinator) State() State {
	if c.win.IsIconifiedOrWithdrawn() {
		return Hidden
	}
	return Shown
}

// Toggle is bound to the global hotkey.
func (c *Coordinator) Toggle() {
	if c.State() == Hidden {
		if c.startHidden {
			c.startHidden = false
		} else {
			c.restore()
		}
		c.win.Present()
		log.Debugf("[COORD] Toggle: shown")
		return
	}

	c.remember()
	c.win.Hide()
	log.Debugf("[COORD] Toggle: hidden at %d,%d", c.x, c.y)
}

// Raise shows the window whatever its state.
func (c *Coordinator) Raise() {
	if c.State() == Hidden {
		if !c.startHidden {
			c.restore()
		}
	} else {
		c.remember()
	}
	c.win.Present()
	log.Debugf("[COORD] Raised")
}

// Lower hides the window. It does nothing when the window is hidden already.
func (c *Coordinator) Lower() {
	if c.State() == Hidden {
		return
	}
	c.remember()
	c.win.Hide()
	log.Debugf("[COORD] Lowered at %d,%d", c.x, c.y)
}

// Position returns the remembered position, if any.
func (c *Coordinator) Position() (x, y int, ok bool) {
	return c.x, c.y, c.hasPos
}

func (c *Coordinator) remember() {
	c.x, c.y = c.win.Position()
	c.hasPos = true
}

func (c *Coordinator) restore() {
	if c.hasPos {
		c.win.Move(c.x, c.y)
	}
}
