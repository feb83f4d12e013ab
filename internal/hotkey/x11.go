package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/keybind"
	log "github.com/sirupsen/logrus"
)

// X11Display grabs keys on the root window over its own X connection.
type X11Display struct {
	xu    *xgbutil.XUtil
	root  xproto.Window
	codes []xproto.Keycode

	mu     sync.Mutex
	closed bool
}

// X11Opener returns an Opener for the key named keyName, e.g. "Escape".
func X11Opener(keyName string) Opener {
	return func() (Display, error) {
		return OpenX11(keyName)
	}
}

func OpenX11(keyName string) (*X11Display, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to X11: %w", err)
	}
	keybind.Initialize(xu)

	codes := keybind.StrToKeycodes(xu, keyName)
	if len(codes) == 0 {
		xu.Conn().Close()
		return nil, fmt.Errorf("no keycode for %q", keyName)
	}

	return &X11Display{
		xu:    xu,
		root:  xu.RootWin(),
		codes: codes,
	}, nil
}

// Grab uses a checked request, so a BadAccess from the server comes back as
// the reply to this call.
func (d *X11Display) Grab(mods uint16) error {
	for _, code := range d.codes {
		if err := keybind.GrabChecked(d.xu, d.root, mods, code); err != nil {
			var access xproto.AccessError
			if errors.As(err, &access) {
				return fmt.Errorf("%w: keycode %d: %v", ErrHotkeyConflict, code, err)
			}
			return fmt.Errorf("grab keycode %d: %w", code, err)
		}
	}
	return nil
}

func (d *X11Display) Ungrab(mods uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, code := range d.codes {
		keybind.Ungrab(d.xu, d.root, mods, code)
	}
	d.xu.Sync()
}

func (d *X11Display) WaitKeyPress() bool {
	for {
		ev, xerr := d.xu.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			return false
		}
		if xerr != nil {
			log.Debugf("[HOTKEY] X11 error: %v", xerr)
			continue
		}
		if kp, ok := ev.(xproto.KeyPressEvent); ok && d.matches(kp.Detail) {
			return true
		}
	}
}

func (d *X11Display) matches(code xproto.Keycode) bool {
	for _, c := range d.codes {
		if c == code {
			return true
		}
	}
	return false
}

func (d *X11Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.xu.Conn().Close()
}
