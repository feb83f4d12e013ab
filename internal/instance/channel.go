// Package instance implements the named-pipe channel that makes the first
// running jalvselect the owner and turns later launches into short-lived
// guests that only signal the owner.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brummer10/jalvselect/internal/mainloop"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Handler receives the commands the channel dispatches. All methods are
// called on the main loop.
type Handler interface {
	Raise()
	Lower()
	RequestShutdown()
	TerminateNow()
}

const (
	// A line written for another process gets pickupTimeout to be read
	// before the writer starts reading again.
	pickupTimeout = 5 * time.Second
	pickupPoll    = 5 * time.Millisecond
	// Own lines read back after pickupTimeout are dropped until forgetAfter.
	forgetAfter = time.Minute
	// A guest returns a line meant for the owner at most this often.
	maxReturns = 3
)

type Channel struct {
	path     string
	identity string
	owner    bool
	file     *os.File
	handoff  time.Duration

	sched   mainloop.Scheduler
	handler Handler
	done    chan struct{}
	stop    chan struct{}

	// Reading pauses while holds > 0 and resumes when resume is closed.
	holdMu sync.Mutex
	holds  int
	resume chan struct{}

	// Touched on the main loop only.
	sent              map[string]time.Time
	returned          map[string]int
	shutdownRequested bool
	closed            bool

	closeOnce sync.Once
}

// Open creates the FIFO at path with create-exclusive semantics. The caller
// owns the channel if the node did not exist yet and is a guest otherwise.
// Open never blocks on the other end of the pipe.
func Open(path, identity string) (*Channel, error) {
	owner := true
	if err := unix.Mkfifo(path, 0666); err != nil {
		if !errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: mkfifo %s: %w", ErrChannelUnavailable, path, err)
		}
		owner = false
	}

	file, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		if owner {
			_ = os.Remove(path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrChannelUnavailable, path, err)
	}

	info, err := file.Stat()
	if err != nil || info.Mode()&os.ModeNamedPipe == 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a fifo", ErrChannelUnavailable, path)
	}

	role := "guest"
	if owner {
		role = "owner"
	}
	log.Infof("[FIFO] Opened %s as %s (%s)", path, role, identity)

	return &Channel{
		path:     path,
		identity: identity,
		owner:    owner,
		file:     file,
		handoff:  pickupTimeout,
		stop:     make(chan struct{}),
		sent:     make(map[string]time.Time),
		returned: make(map[string]int),
	}, nil
}

func (c *Channel) IsOwner() bool    { return c.owner }
func (c *Channel) Identity() string { return c.identity }
func (c *Channel) Path() string     { return c.path }

// Listen starts reading lines in a background goroutine. Each line is handed
// to sched and dispatched to h on the main loop.
func (c *Channel) Listen(sched mainloop.Scheduler, h Handler) {
	c.sched = sched
	c.handler = h
	c.done = make(chan struct{})
	go c.readLoop()
}

func (c *Channel) readLoop() {
	defer close(c.done)

	r := bufio.NewReader(c.file)
	var partial string
	for {
		chunk, err := r.ReadString('\n')
		partial += chunk
		if err == nil {
			line := strings.TrimSuffix(strings.TrimSuffix(partial, "\n"), "\r")
			partial = ""
			c.sched.IdleAdd(func() { c.dispatch(line) })
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if !c.waitResume() {
				return
			}
			continue
		}
		if !errors.Is(err, os.ErrClosed) {
			log.Warnf("[FIFO] Reader stopped: %v", err)
		}
		return
	}
}

// Write sends msg followed by a newline. It must be called on the main loop.
func (c *Channel) Write(msg string) error {
	if c.closed {
		return fmt.Errorf("write %q: channel closed", msg)
	}

	c.sent[msg] = time.Now()
	delete(c.returned, msg)

	if err := c.deliver(msg); err != nil {
		return fmt.Errorf("write %q: %w", msg, err)
	}
	log.Debugf("[FIFO] Wrote %q", msg)
	return nil
}

// Announce writes this process's identity so the owner can take over.
func (c *Channel) Announce() error {
	return c.Write(c.identity)
}

// deliver writes line with reading paused. Reading resumes once another
// process has taken the line out of the pipe, or after c.handoff.
func (c *Channel) deliver(line string) error {
	c.hold()
	before, _ := c.pending()
	if _, err := c.file.WriteString(line + "\n"); err != nil {
		c.release()
		return err
	}
	go c.awaitPickup(before + len(line) + 1)
	return nil
}

func (c *Channel) awaitPickup(full int) {
	defer c.release()

	ticker := time.NewTicker(pickupPoll)
	defer ticker.Stop()
	deadline := time.Now().Add(c.handoff)
	for time.Now().Before(deadline) {
		if n, err := c.pending(); err != nil || n != full {
			return
		}
		select {
		case <-ticker.C:
		case <-c.stop:
			return
		}
	}
}

// pending reports how many bytes sit unread in the pipe.
func (c *Channel) pending() (int, error) {
	raw, err := c.file.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var ioctlErr error
	if err := raw.Control(func(fd uintptr) {
		n, ioctlErr = unix.IoctlGetInt(int(fd), unix.TIOCINQ)
	}); err != nil {
		return 0, err
	}
	return n, ioctlErr
}

func (c *Channel) hold() {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()

	c.holds++
	if c.resume == nil {
		c.resume = make(chan struct{})
	}
	// Wakes a blocked read so the reader parks in waitResume.
	if err := c.file.SetReadDeadline(time.Now()); err != nil {
		log.Debugf("[FIFO] Cannot pause reader: %v", err)
	}
}

func (c *Channel) release() {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()

	c.holds--
	if c.holds > 0 {
		return
	}
	c.holds = 0
	if err := c.file.SetReadDeadline(time.Time{}); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debugf("[FIFO] Cannot resume reader: %v", err)
	}
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
}

// waitResume blocks while reading is on hold. It returns false once the
// channel is closed.
func (c *Channel) waitResume() bool {
	c.holdMu.Lock()
	resume := c.resume
	c.holdMu.Unlock()

	if resume == nil {
		return true
	}
	select {
	case <-resume:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Channel) dispatch(line string) {
	if c.closed {
		return
	}

	msg, err := ParseMessage(line)
	if err != nil {
		log.Warnf("[FIFO] Unknown message: %v", err)
		return
	}

	if at, ok := c.sent[line]; ok {
		switch age := time.Since(at); {
		case age < c.handoff:
			log.Debugf("[FIFO] Read back own message %q", line)
			c.putBack(line)
			return
		case age < forgetAfter:
			log.Debugf("[FIFO] Nobody picked up %q, dropping it", line)
			return
		}
		delete(c.sent, line)
	}

	if !c.owner {
		c.dispatchGuest(line, msg)
		return
	}

	switch msg.Kind {
	case KindQuit:
		if c.shutdownRequested {
			log.Debugf("[FIFO] Shutdown already requested")
			return
		}
		c.shutdownRequested = true
		c.handler.RequestShutdown()
	case KindExit:
		c.handler.TerminateNow()
	case KindShow:
		c.handler.Raise()
	case KindHide:
		c.handler.Lower()
	case KindIdentity:
		if msg.Identity != c.identity {
			log.Infof("[FIFO] Another instance announced itself (%s)", msg.Identity)
			if err := c.Write(KindExit.String()); err != nil {
				log.Warnf("[FIFO] Failed to answer %s: %v", msg.Identity, err)
			}
		}
		c.handler.Raise()
	}
}

// A guest only acts on exit. Everything else is addressed to the owner and
// goes back on the channel.
func (c *Channel) dispatchGuest(line string, msg Message) {
	if msg.Kind == KindExit {
		c.handler.TerminateNow()
		return
	}
	if c.returned[line] >= maxReturns {
		log.Debugf("[FIFO] Dropping %q after %d returns", line, maxReturns)
		return
	}
	c.returned[line]++
	c.putBack(line)
}

func (c *Channel) putBack(line string) {
	if err := c.deliver(line); err != nil {
		log.Warnf("[FIFO] Failed to return %q: %v", line, err)
	}
}

// RemoveNode unlinks the FIFO if this process owns it. It is the only cleanup
// done on the immediate-exit path.
func (c *Channel) RemoveNode() {
	if !c.owner {
		return
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		log.Warnf("[FIFO] Failed to remove %s: %v", c.path, err)
	}
}

// Close stops the reader and, for the owner, removes the FIFO node. Guests
// never remove it. A closed channel cannot be reopened.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed = true
		close(c.stop)
		err = c.file.Close()
		if c.done != nil {
			<-c.done
		}
		c.RemoveNode()
		log.Debugf("[FIFO] Closed %s", c.path)
	})
	return err
}

// Send writes a single message into an existing channel without taking part
// in ownership. It fails if the FIFO is missing or nobody holds it open.
func Send(path string, msg Message) error {
	file, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return fmt.Errorf("%w: no running instance on %s", ErrChannelUnavailable, path)
		}
		return fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.Mode()&os.ModeNamedPipe == 0 {
		return fmt.Errorf("%w: %s is not a fifo", ErrChannelUnavailable, path)
	}

	if _, err := file.WriteString(msg.Encode() + "\n"); err != nil {
		return fmt.Errorf("write %q: %w", msg.Encode(), err)
	}
	return nil
}
