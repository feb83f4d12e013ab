// Package core wires the instance channel, the hotkey grabber and the plugin
// window together and runs the GTK main loop.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brummer10/jalvselect/internal/catalog"
	"github.com/brummer10/jalvselect/internal/config"
	"github.com/brummer10/jalvselect/internal/coordinator"
	"github.com/brummer10/jalvselect/internal/hotkey"
	"github.com/brummer10/jalvselect/internal/instance"
	"github.com/brummer10/jalvselect/internal/mainloop"
	"github.com/brummer10/jalvselect/internal/notify"
	"github.com/gotk3/gotk3/gtk"
	log "github.com/sirupsen/logrus"
)

const infoWorkers = 4

// App is the composition root. Only the owner instance builds a window.
type App struct {
	cfg     *config.Config
	running bool
	sigChan chan os.Signal

	sched    mainloop.Scheduler
	channel  *instance.Channel
	grabber  *hotkey.Grabber
	coord    *coordinator.Coordinator
	ui       *UI
	notifier *notify.Notifier

	source   *catalog.InfoCache
	launcher *catalog.Launcher
	usage    *catalog.UsageTracker

	ctx         context.Context
	cancel      context.CancelFunc
	loadVersion atomic.Int64

	exit func(code int)
}

func NewApp(cfg *config.Config) (*App, error) {
	source, err := catalog.NewInfoCache(
		catalog.NewCommandSource(cfg.Launcher.CatalogCommand, cfg.Launcher.InfoCommand),
		cfg.Launcher.PresetCacheSize)
	if err != nil {
		return nil, err
	}

	usage, err := catalog.NewUsageTracker(cfg.Launcher.UsageDir)
	if err != nil {
		log.Warnf("[CATALOG] Usage tracking disabled: %v", err)
		usage = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:      cfg,
		sigChan:  make(chan os.Signal, 1),
		source:   source,
		usage:    usage,
		launcher: catalog.NewLauncher(usage),
		ctx:      ctx,
		cancel:   cancel,
		exit:     os.Exit,
	}, nil
}

// Run settles ownership of the instance channel. A guest signals the owner
// and exits; the owner runs the window until it is told to quit.
func (a *App) Run() error {
	ch, err := instance.Open(a.cfg.Instance.FifoPath, instance.OwnIdentity())
	if err != nil {
		log.Warnf("[FIFO] %v, running without single-instance detection", err)
		return a.runOwner(nil)
	}

	if !ch.IsOwner() {
		timeout := time.Duration(a.cfg.Instance.HandoverTimeoutMs) * time.Millisecond
		err := instance.RunGuest(a.ctx, ch, timeout, func() { a.exit(0) })
		if err == nil {
			return nil
		}
		if !errors.Is(err, instance.ErrNoOwner) || !a.cfg.Instance.TakeoverStale {
			ch.Close()
			return err
		}

		ch, err = ch.TakeOver()
		if errors.Is(err, instance.ErrOwnerAlive) {
			return fmt.Errorf("running instance does not answer: %w", err)
		}
		if err != nil {
			log.Warnf("[FIFO] Takeover failed: %v, running without single-instance detection", err)
			return a.runOwner(nil)
		}
		if !ch.IsOwner() {
			ch.Close()
			return fmt.Errorf("another instance took %s first", a.cfg.Instance.FifoPath)
		}
	}

	return a.runOwner(ch)
}

func (a *App) runOwner(ch *instance.Channel) error {
	a.running = true
	a.channel = ch

	gtk.Init(nil)
	SetupStyles(a.cfg.Window.CSSFile)
	a.sched = Glib{}
	a.notifier = notify.New(a.cfg.Notify.Enabled, time.Duration(a.cfg.Notify.TimeoutMs)*time.Millisecond)

	ui, err := NewUI(a, a.cfg)
	if err != nil {
		if ch != nil {
			ch.Close()
		}
		return fmt.Errorf("failed to create window: %w", err)
	}
	a.ui = ui
	a.coord = coordinator.New(newGtkWindow(ui.window), a.cfg.Window.StartHidden)

	interpreters, def := catalog.DiscoverInterpreters(os.Getenv("PATH"))
	if a.cfg.Launcher.Interpreter != "" {
		def = a.cfg.Launcher.Interpreter
		if !contains(interpreters, def) {
			interpreters = append(interpreters, def)
		}
	}
	if len(interpreters) == 0 {
		a.diagnose(notify.UrgencyNormal, "No LV2 host found", "Install jalv to launch plugins.")
	}
	ui.SetInterpreters(interpreters, def)

	if ch != nil {
		ch.Listen(a.sched, a)
	} else {
		a.diagnose(notify.UrgencyNormal, "Single instance disabled",
			fmt.Sprintf("Cannot use %s.", a.cfg.Instance.FifoPath))
	}

	if a.cfg.Hotkey.Enabled {
		a.startHotkey()
	}

	signal.Notify(a.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-a.sigChan
		if !ok {
			return
		}
		log.Infof("Received signal: %v", sig)
		a.sched.IdleAdd(a.Quit)
	}()

	a.Refresh()

	if !a.cfg.Window.StartHidden {
		ui.window.ShowAll()
	}

	log.Infof("jalvselect running (%s)", instance.OwnIdentity())
	gtk.Main()

	a.shutdown()
	return nil
}

func (a *App) startHotkey() {
	binding, err := hotkey.ParseBinding(a.cfg.Hotkey.Key, a.cfg.Hotkey.Modifiers, a.cfg.Hotkey.FallbackModifiers)
	if err != nil {
		log.Warnf("[HOTKEY] Invalid binding: %v", err)
		return
	}

	a.grabber = hotkey.NewGrabber(hotkey.X11Opener(a.cfg.Hotkey.Key), binding, a.sched, a.coord.Toggle)
	a.grabber.OnDisabled = func(err error) {
		a.diagnose(notify.UrgencyNormal, "Global hotkey disabled",
			fmt.Sprintf("%s and %s are taken: %v", binding, binding.FallbackString(), err))
	}
	if err := a.grabber.Start(a.ctx); err != nil {
		log.Warnf("[HOTKEY] %v", err)
	}
}

func (a *App) diagnose(urgency notify.Urgency, summary, body string) {
	log.Warnf("%s: %s", summary, body)
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Send(urgency, summary, body); err != nil {
		log.Debugf("[NOTIFY] %v", err)
	}
}

// Raise, Lower, RequestShutdown and TerminateNow make App the channel's
// handler. They run on the main loop.
func (a *App) Raise() { a.coord.Raise() }

func (a *App) Lower() { a.coord.Lower() }

func (a *App) RequestShutdown() { a.Quit() }

// TerminateNow exits without any cleanup besides unlinking the FIFO node.
func (a *App) TerminateNow() {
	log.Infof("Told to exit by another instance")
	if a.channel != nil {
		a.channel.RemoveNode()
	}
	a.exit(0)
}

// Quit leaves the GTK main loop. Cleanup happens once gtk.Main returns.
func (a *App) Quit() {
	if !a.running {
		return
	}
	a.running = false

	log.Infof("Shutting down...")
	gtk.MainQuit()
}

func (a *App) shutdown() {
	signal.Stop(a.sigChan)
	close(a.sigChan)
	a.cancel()

	if a.grabber != nil {
		a.grabber.Stop()
	}
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			log.Debugf("[FIFO] Close: %v", err)
		}
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
}

// Refresh reloads the plugin list in the background. The list appears as
// soon as lv2ls answers; class and author follow once every plugin has been
// looked up.
func (a *App) Refresh() {
	version := a.loadVersion.Add(1)
	a.source.Purge()

	go func() {
		plugins, err := a.source.Plugins(a.ctx)
		if err != nil {
			a.sched.IdleAdd(func() {
				a.diagnose(notify.UrgencyNormal, "Cannot list LV2 plugins", err.Error())
			})
			return
		}
		a.sched.IdleAdd(func() {
			if a.loadVersion.Load() == version {
				a.ui.SetPlugins(plugins)
			}
		})

		enriched := catalog.Enrich(a.ctx, a.source, plugins, infoWorkers)
		a.sched.IdleAdd(func() {
			if a.loadVersion.Load() == version {
				a.ui.SetPlugins(enriched)
			}
		})
	}()
}

// ShowPresets looks up the presets of plugin and pops up the preset menu.
func (a *App) ShowPresets(plugin catalog.Plugin) {
	go func() {
		info, err := a.source.Info(a.ctx, plugin.URI)
		a.sched.IdleAdd(func() {
			var presets []catalog.Preset
			if err != nil {
				log.Warnf("[CATALOG] No presets for %s: %v", plugin.URI, err)
			} else {
				presets = info.Presets
			}
			a.ui.ShowPresetMenu(plugin, presets)
		})
	}()
}

func (a *App) Launch(plugin catalog.Plugin, preset *catalog.Preset) {
	if err := a.launcher.Launch(a.ui.Interpreter(), plugin, preset); err != nil {
		a.diagnose(notify.UrgencyNormal, "Cannot start "+plugin.Name, err.Error())
	}
	a.ui.ClearSelection()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
