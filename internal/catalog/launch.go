package catalog

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

var ErrNoInterpreter = errors.New("no interpreter selected")

// Launcher starts plugin hosts detached from this process.
type Launcher struct {
	// Usage, when set, records every successful launch.
	Usage *UsageTracker

	start func(cmd *exec.Cmd) error
}

func NewLauncher(usage *UsageTracker) *Launcher {
	return &Launcher{Usage: usage, start: startDetached}
}

func startDetached(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Command builds "<interpreter> [-p <preset>] <plugin>". interpreter may
// carry its own arguments, as in "jalv -s".
func Command(interpreter string, plugin Plugin, preset *Preset) ([]string, error) {
	args := strings.Fields(interpreter)
	if len(args) == 0 {
		return nil, ErrNoInterpreter
	}
	if plugin.URI == "" {
		return nil, fmt.Errorf("plugin %q has no URI", plugin.Name)
	}
	if preset != nil && preset.URI != "" {
		args = append(args, "-p", preset.URI)
	}
	return append(args, plugin.URI), nil
}

func (l *Launcher) Launch(interpreter string, plugin Plugin, preset *Preset) error {
	args, err := Command(interpreter, plugin, preset)
	if err != nil {
		return err
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	log.Infof("[CATALOG] Launched %s", strings.Join(args, " "))

	if l.Usage != nil {
		l.Usage.RecordLaunch(plugin.URI)
	}
	return nil
}
