package instance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/brummer10/jalvselect/internal/mainloop"
	"golang.org/x/sys/unix"
)

func TestRunGuestHandover(t *testing.T) {
	path := fifoPath(t)

	owner, err := Open(path, Identity(100))
	if err != nil {
		t.Fatalf("Open owner: %v", err)
	}
	defer owner.Close()

	ownerLoop := mainloop.NewLoop()
	h := &recordingHandler{}
	owner.Listen(ownerLoop, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		ownerLoop.Run(ctx)
	}()

	guest, err := Open(path, Identity(555))
	if err != nil {
		t.Fatalf("Open guest: %v", err)
	}
	defer guest.Close()

	terminated := 0
	if err := RunGuest(context.Background(), guest, 3*time.Second, func() { terminated++ }); err != nil {
		t.Fatalf("RunGuest: %v", err)
	}
	if terminated != 1 {
		t.Errorf("Expected guest to terminate once, got %d", terminated)
	}

	cancel()
	<-ownerDone
	if h.raise != 1 {
		t.Errorf("Expected owner to raise once, got %d", h.raise)
	}
	if h.terminate != 0 {
		t.Errorf("Owner must not terminate on its own exit, got %d", h.terminate)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("FIFO node must survive the handover: %v", err)
	}
}

func TestRunGuestTimesOutAndTakesOver(t *testing.T) {
	path := fifoPath(t)
	// A node left behind by an owner that was killed.
	if err := unix.Mkfifo(path, 0666); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}

	guest, err := Open(path, Identity(42))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if guest.IsOwner() {
		t.Fatal("Expected guest on an existing node")
	}

	start := time.Now()
	err = RunGuest(context.Background(), guest, 100*time.Millisecond, func() {
		t.Error("Guest must not terminate without an owner")
	})
	if !errors.Is(err, ErrNoOwner) {
		t.Fatalf("Expected ErrNoOwner, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout took too long: %v", elapsed)
	}
	select {
	case <-guest.done:
	default:
		t.Error("Reader still running after the timeout")
	}

	owner, err := guest.TakeOver()
	if err != nil {
		t.Fatalf("TakeOver: %v", err)
	}
	defer owner.Close()
	if !owner.IsOwner() {
		t.Error("Expected ownership after takeover")
	}
	if owner.Identity() != Identity(42) {
		t.Errorf("Identity changed to %q", owner.Identity())
	}
}

func TestRunGuestRejectsOwner(t *testing.T) {
	owner, err := Open(fifoPath(t), Identity(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer owner.Close()

	if err := RunGuest(context.Background(), owner, time.Second, func() {}); err == nil {
		t.Error("Expected error for owner channel")
	}
}

func TestRunGuestContextCancel(t *testing.T) {
	path := fifoPath(t)
	if err := unix.Mkfifo(path, 0666); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	guest, err := Open(path, Identity(7))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer guest.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := RunGuest(ctx, guest, time.Minute, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestTakeOverRefusesNonFifo(t *testing.T) {
	path := fifoPath(t)
	if err := unix.Mkfifo(path, 0666); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	guest, err := Open(path, Identity(9))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := guest.TakeOver(); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("Expected ErrChannelUnavailable, got %v", err)
	}
}

func TestTakeOverRefusesLiveOwner(t *testing.T) {
	path := fifoPath(t)
	owner, err := Open(path, Identity(1))
	if err != nil {
		t.Fatalf("Open owner: %v", err)
	}
	defer owner.Close()

	guest, err := Open(path, Identity(2))
	if err != nil {
		t.Fatalf("Open guest: %v", err)
	}

	if _, err := guest.TakeOver(); !errors.Is(err, ErrOwnerAlive) {
		t.Fatalf("Expected ErrOwnerAlive, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Live owner's node was removed: %v", err)
	}
	if err := Send(path, Message{Kind: KindShow}); err != nil {
		t.Errorf("Owner no longer reachable: %v", err)
	}
}

const ownerProcessEnv = "JALVSELECT_TEST_OWNER_FIFO"

// lineHandler reports each command on stdout for the parent test.
type lineHandler struct {
	loop *mainloop.Loop
}

func (h *lineHandler) Raise()        { fmt.Println("raised") }
func (h *lineHandler) Lower()        { fmt.Println("lowered") }
func (h *lineHandler) TerminateNow() { fmt.Println("terminated") }
func (h *lineHandler) RequestShutdown() {
	fmt.Println("quit")
	h.loop.Quit()
}

// TestOwnerProcess is the owner side of the handover test. It only runs as
// a child of TestRunGuestHandoverAcrossProcesses.
func TestOwnerProcess(t *testing.T) {
	path := os.Getenv(ownerProcessEnv)
	if path == "" {
		t.Skip("runs as a child process only")
	}

	owner, err := Open(path, OwnIdentity())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !owner.IsOwner() {
		t.Fatal("Owner process found an existing node")
	}
	loop := mainloop.NewLoop()
	owner.Listen(loop, &lineHandler{loop: loop})
	fmt.Println("ready")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	loop.Run(ctx)
	owner.Close()
}

func TestRunGuestHandoverAcrossProcesses(t *testing.T) {
	path := fifoPath(t)

	cmd := exec.Command(os.Args[0], "-test.run=^TestOwnerProcess$")
	cmd.Env = append(os.Environ(), ownerProcessEnv+"="+path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start owner process: %v", err)
	}
	exited := make(chan error, 1)
	defer func() {
		cmd.Process.Kill()
		<-exited
	}()

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
		exited <- cmd.Wait()
	}()
	expectLine(t, lines, "ready")

	const guests = 10
	for i := 0; i < guests; i++ {
		guest, err := Open(path, OwnIdentity())
		if err != nil {
			t.Fatalf("Open guest %d: %v", i, err)
		}
		if guest.IsOwner() {
			t.Fatalf("Guest %d became owner", i)
		}

		terminated := 0
		err = RunGuest(context.Background(), guest, 3*time.Second, func() { terminated++ })
		if err != nil {
			t.Fatalf("Handover %d: %v", i, err)
		}
		if terminated != 1 {
			t.Errorf("Handover %d: expected one terminate, got %d", i, terminated)
		}
		guest.Close()
		expectLine(t, lines, "raised")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Owner's node is gone: %v", err)
	}
	if err := Send(path, Message{Kind: KindQuit}); err != nil {
		t.Fatalf("Send quit: %v", err)
	}
	expectLine(t, lines, "quit")

	select {
	case err := <-exited:
		exited <- err
		if err != nil {
			t.Errorf("Owner process failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Owner process did not exit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Owner should remove its node on quit, stat err=%v", err)
	}
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("Owner process closed stdout while waiting for %q", want)
			}
			if line == want {
				return
			}
			if line == "terminated" {
				t.Fatalf("Owner terminated while waiting for %q", want)
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %q", want)
		}
	}
}
