// Package notify shows short desktop notifications through the
// org.freedesktop.Notifications service.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	notifyCall = busName + ".Notify"
	appName    = "jalvselect"
	appIcon    = "audio-x-generic"
)

type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// caller is the subset of dbus.BusObject used here.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier sends notifications when a session bus is reachable and only
// logs them otherwise.
type Notifier struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	obj     caller
	timeout time.Duration
	lastID  uint32
}

// New connects to the session bus. A missing bus is not an error: the
// returned Notifier logs instead.
func New(enabled bool, timeout time.Duration) *Notifier {
	n := &Notifier{timeout: timeout}
	if !enabled {
		return n
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Warnf("[NOTIFY] Session bus unavailable, logging only: %v", err)
		return n
	}
	n.conn = conn
	n.obj = conn.Object(busName, dbus.ObjectPath(objectPath))
	return n
}

// Enabled reports whether notifications reach the desktop.
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.obj != nil
}

// Send shows summary and body. Each call replaces the previous notification
// so repeated diagnostics do not stack up.
func (n *Notifier) Send(urgency Urgency, summary, body string) error {
	log.Infof("[NOTIFY] %s: %s", summary, body)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.obj == nil {
		return nil
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(urgency)),
	}
	call := n.obj.Call(notifyCall, 0,
		appName, n.lastID, appIcon, summary, body,
		[]string{}, hints, int32(n.timeout/time.Millisecond))
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify reply: %w", err)
	}
	n.lastID = id
	return nil
}

func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.obj = nil
}
