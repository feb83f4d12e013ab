package core

import (
	"github.com/gotk3/gotk3/glib"
)

// Glib runs callbacks on the GTK main loop.
type Glib struct{}

func (Glib) IdleAdd(fn func()) {
	glib.IdleAdd(func() bool {
		fn()
		return false
	})
}
