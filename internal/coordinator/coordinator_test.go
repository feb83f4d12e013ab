package coordinator

import (
	"testing"
)

// fakeWindow mimics a window manager that forgets the position of a
// withdrawn window and maps it again at the origin.
type fakeWindow struct {
	hidden   bool
	x, y     int
	presents int
	hides    int
	moves    int
}

func (w *fakeWindow) IsIconifiedOrWithdrawn() bool { return w.hidden }
func (w *fakeWindow) Position() (int, int)         { return w.x, w.y }

func (w *fakeWindow) Move(x, y int) {
	w.moves++
	w.x, w.y = x, y
}

func (w *fakeWindow) Present() {
	w.presents++
	w.hidden = false
}

func (w *fakeWindow) Hide() {
	w.hides++
	w.hidden = true
	w.x, w.y = 0, 0
}

func TestToggleTwiceRestoresPosition(t *testing.T) {
	w := &fakeWindow{x: 640, y: 360}
	c := New(w, false)

	c.Toggle()
	if c.State() != Hidden {
		t.Fatalf("Expected hidden after first toggle, got %v", c.State())
	}

	c.Toggle()
	if c.State() != Shown {
		t.Fatalf("Expected shown after second toggle, got %v", c.State())
	}
	if w.x != 640 || w.y != 360 {
		t.Errorf("Expected window back at 640,360, got %d,%d", w.x, w.y)
	}
}

func TestStartHiddenSkipsFirstRestore(t *testing.T) {
	w := &fakeWindow{hidden: true}
	c := New(w, true)

	c.Toggle()
	if c.State() != Shown {
		t.Fatalf("Expected shown, got %v", c.State())
	}
	if w.moves != 0 {
		t.Errorf("Expected no move on first show, got %d", w.moves)
	}

	w.x, w.y = 10, 20
	c.Toggle()
	c.Toggle()
	if w.moves != 1 || w.x != 10 || w.y != 20 {
		t.Errorf("Expected restore to 10,20 after flag consumed, got %d,%d (%d moves)", w.x, w.y, w.moves)
	}
}

func TestRaiseWhileStartHiddenDoesNotConsumeFlag(t *testing.T) {
	w := &fakeWindow{hidden: true}
	c := New(w, true)

	c.Raise()
	if w.moves != 0 || w.presents != 1 {
		t.Errorf("Expected plain present, got %d moves %d presents", w.moves, w.presents)
	}

	c.Lower()
	c.Toggle()
	if w.moves != 0 {
		t.Errorf("Expected flag still active for the first toggle, got %d moves", w.moves)
	}
}

func TestRaiseWhenShownRemembersAndPresents(t *testing.T) {
	w := &fakeWindow{x: 5, y: 6}
	c := New(w, false)

	c.Raise()
	if w.presents != 1 || w.hides != 0 {
		t.Errorf("Expected one present and no hide, got %d/%d", w.presents, w.hides)
	}
	if x, y, ok := c.Position(); !ok || x != 5 || y != 6 {
		t.Errorf("Expected remembered 5,6, got %d,%d,%v", x, y, ok)
	}
}

func TestRaiseRestoresAfterLower(t *testing.T) {
	w := &fakeWindow{x: 100, y: 200}
	c := New(w, false)

	c.Lower()
	c.Raise()
	if w.x != 100 || w.y != 200 || c.State() != Shown {
		t.Errorf("Expected shown at 100,200, got %d,%d %v", w.x, w.y, c.State())
	}
}

func TestLowerWhenHiddenIsNoop(t *testing.T) {
	w := &fakeWindow{x: 1, y: 2}
	c := New(w, false)

	c.Lower()
	w.x, w.y = 50, 50
	c.Lower()

	if w.hides != 1 {
		t.Errorf("Expected a single hide, got %d", w.hides)
	}
	if x, y, _ := c.Position(); x != 1 || y != 2 {
		t.Errorf("Second Lower overwrote the position: %d,%d", x, y)
	}
}

func TestShowWithoutRememberedPositionDoesNotMove(t *testing.T) {
	w := &fakeWindow{hidden: true}
	c := New(w, false)

	c.Toggle()
	if w.moves != 0 {
		t.Errorf("Expected no move without a remembered position, got %d", w.moves)
	}
}
