package instance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brummer10/jalvselect/internal/mainloop"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var (
	// ErrNoOwner means a guest announced itself and nobody answered in time.
	ErrNoOwner = errors.New("no answer from the running instance")
	// ErrOwnerAlive means the node still has a reader, so it is not stale.
	ErrOwnerAlive = errors.New("instance channel still in use")
)

type guestHandler struct {
	terminate func()
	answered  bool
	loop      *mainloop.Loop
}

func (g *guestHandler) Raise()           {}
func (g *guestHandler) Lower()           {}
func (g *guestHandler) RequestShutdown() {}

func (g *guestHandler) TerminateNow() {
	g.answered = true
	g.terminate()
	g.loop.Quit()
}

// RunGuest announces the guest's identity and waits on a headless loop for
// the owner's exit. terminate is called when it arrives; in the real
// program it does not return. RunGuest returns ErrNoOwner when timeout
// passes first. Without an answer the channel is closed before returning.
func RunGuest(ctx context.Context, ch *Channel, timeout time.Duration, terminate func()) error {
	if ch.IsOwner() {
		return fmt.Errorf("RunGuest on the owning channel %s", ch.Path())
	}

	loop := mainloop.NewLoop()
	h := &guestHandler{terminate: terminate, loop: loop}
	ch.Listen(loop, h)

	var announceErr error
	loop.IdleAdd(func() {
		if err := ch.Announce(); err != nil {
			announceErr = err
			loop.Quit()
		}
	})

	timer := time.AfterFunc(timeout, func() {
		loop.IdleAdd(loop.Quit)
	})
	defer timer.Stop()

	runErr := loop.Run(ctx)
	if h.answered {
		return nil
	}
	ch.Close()

	switch {
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	case announceErr != nil:
		return announceErr
	case ctx.Err() != nil:
		return ctx.Err()
	}
	log.Warnf("[FIFO] No answer from the owner of %s within %v", ch.Path(), timeout)
	return ErrNoOwner
}

// TakeOver closes a guest channel whose owner is gone, removes the stale
// node and opens the path again. The result is normally the owner, unless
// another process got there first. A node that any process still reads is
// left alone and ErrOwnerAlive is returned.
func (c *Channel) TakeOver() (*Channel, error) {
	if c.owner {
		return c, nil
	}
	_ = c.Close()

	info, err := os.Lstat(c.path)
	if err == nil {
		if info.Mode()&os.ModeNamedPipe == 0 {
			return nil, fmt.Errorf("%w: %s is not a fifo", ErrChannelUnavailable, c.path)
		}
		if err := probeReader(c.path); err != nil {
			return nil, err
		}
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: remove stale %s: %w", ErrChannelUnavailable, c.path, err)
		}
		log.Infof("[FIFO] Removed stale %s", c.path)
	}

	return Open(c.path, c.identity)
}

// probeReader returns nil only when nobody holds path open for reading.
// Opening a fifo write-only without blocking fails with ENXIO in that case.
func probeReader(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	switch {
	case err == nil:
		f.Close()
		return fmt.Errorf("%w: %s", ErrOwnerAlive, path)
	case errors.Is(err, unix.ENXIO), os.IsNotExist(err):
		return nil
	}
	return fmt.Errorf("%w: probe %s: %w", ErrChannelUnavailable, path, err)
}
