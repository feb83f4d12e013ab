package core

import (
	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"
)

// gtkWindow adapts the toplevel to coordinator.Window. The iconified flag
// follows window-state-event; a hidden window is not visible at all.
type gtkWindow struct {
	win       *gtk.Window
	iconified bool
}

func newGtkWindow(win *gtk.Window) *gtkWindow {
	w := &gtkWindow{win: win}
	win.Connect("window-state-event", func(_ *gtk.Window, ev *gdk.Event) bool {
		state := gdk.EventWindowStateNewFromEvent(ev)
		w.iconified = state.NewWindowState()&gdk.WINDOW_STATE_ICONIFIED != 0
		return false
	})
	return w
}

func (w *gtkWindow) IsIconifiedOrWithdrawn() bool {
	return w.iconified || !w.win.IsVisible()
}

func (w *gtkWindow) Move(x, y int) { w.win.Move(x, y) }

func (w *gtkWindow) Position() (int, int) { return w.win.GetPosition() }

func (w *gtkWindow) Present() {
	w.win.ShowAll()
	w.win.Present()
}

func (w *gtkWindow) Hide() { w.win.Hide() }
