package core

import (
	"fmt"

	"github.com/brummer10/jalvselect/internal/catalog"
	"github.com/brummer10/jalvselect/internal/config"
	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	log "github.com/sirupsen/logrus"
)

// UI is the plugin list window. It only touches catalog data handed to it on
// the main loop.
type UI struct {
	app *App

	window      *gtk.Window
	list        *gtk.ListBox
	entry       *gtk.Entry
	interpreter *gtk.ComboBoxText
	classStore  *gtk.ListStore

	plugins []catalog.Plugin
	shown   []catalog.Plugin
	menu    *gtk.Menu
}

func NewUI(app *App, cfg *config.Config) (*UI, error) {
	window, err := gtk.WindowNew(gtk.WINDOW_TOPLEVEL)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.SetTitle(cfg.Window.Title)
	window.SetDefaultSize(cfg.Window.Width, cfg.Window.Height)
	window.SetIconName("audio-x-generic")

	box, err := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create box: %w", err)
	}
	window.Add(box)

	scrolled, err := gtk.ScrolledWindowNew(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrolled window: %w", err)
	}
	scrolled.SetPolicy(gtk.POLICY_AUTOMATIC, gtk.POLICY_AUTOMATIC)
	scrolled.SetVExpand(true)
	box.PackStart(scrolled, true, true, 0)

	list, err := gtk.ListBoxNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin list: %w", err)
	}
	list.SetName("plugin-list")
	scrolled.Add(list)

	buttons, err := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create button box: %w", err)
	}
	box.PackEnd(buttons, false, false, 0)

	interpreter, err := gtk.ComboBoxTextNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter box: %w", err)
	}
	buttons.PackStart(interpreter, false, false, 0)

	entry, err := gtk.EntryNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create search entry: %w", err)
	}
	entry.SetPlaceholderText("Search name or class")
	entry.SetName("search-entry")
	buttons.PackStart(entry, true, true, 0)

	classStore, err := gtk.ListStoreNew(glib.TYPE_STRING)
	if err != nil {
		return nil, fmt.Errorf("failed to create class store: %w", err)
	}
	completion, err := gtk.EntryCompletionNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	completion.SetModel(classStore)
	completion.SetTextColumn(0)
	entry.SetCompletion(completion)

	refresh, err := gtk.ButtonNewWithMnemonic("_Refresh")
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh button: %w", err)
	}
	buttons.PackStart(refresh, false, false, 0)

	quit, err := gtk.ButtonNewWithMnemonic("_Quit")
	if err != nil {
		return nil, fmt.Errorf("failed to create quit button: %w", err)
	}
	buttons.PackStart(quit, false, false, 0)

	u := &UI{
		app:         app,
		window:      window,
		list:        list,
		entry:       entry,
		interpreter: interpreter,
		classStore:  classStore,
	}

	entry.Connect("changed", func() { u.refill() })
	list.Connect("row-activated", func(_ *gtk.ListBox, row *gtk.ListBoxRow) {
		u.onRowActivated(row)
	})
	refresh.Connect("clicked", func() { app.Refresh() })
	quit.Connect("clicked", func() { app.Quit() })
	window.Connect("key-press-event", func(_ *gtk.Window, ev *gdk.Event) bool {
		return u.onKeyPress(gdk.EventKeyNewFromEvent(ev))
	})
	window.Connect("delete-event", func() bool {
		app.Quit()
		return true
	})

	return u, nil
}

func (u *UI) onKeyPress(ev *gdk.EventKey) bool {
	state := ev.State()
	if state&gdk.CONTROL_MASK == 0 {
		return false
	}
	switch ev.KeyVal() {
	case gdk.KEY_q, gdk.KEY_Q:
		u.app.Quit()
	case gdk.KEY_r, gdk.KEY_R:
		u.app.Refresh()
	case gdk.KEY_w, gdk.KEY_W:
		u.app.Lower()
	default:
		return false
	}
	return true
}

// SetInterpreters fills the interpreter box and selects def.
func (u *UI) SetInterpreters(names []string, def string) {
	u.interpreter.RemoveAll()
	for i, name := range names {
		u.interpreter.AppendText(name)
		if name == def {
			u.interpreter.SetActive(i)
		}
	}
}

func (u *UI) Interpreter() string {
	return u.interpreter.GetActiveText()
}

// SetPlugins replaces the catalog shown in the window.
func (u *UI) SetPlugins(plugins []catalog.Plugin) {
	u.plugins = plugins
	u.window.SetTooltipText(catalog.Stats(plugins))

	u.classStore.Clear()
	for _, class := range catalog.Classes(plugins) {
		iter := u.classStore.Append()
		if err := u.classStore.SetValue(iter, 0, class); err != nil {
			log.Debugf("[UI] Failed to add class %q: %v", class, err)
		}
	}
	u.refill()
}

func (u *UI) refill() {
	query, _ := u.entry.GetText()
	shown := catalog.Filter(u.plugins, query, u.app.cfg.Launcher.FuzzySearch)
	if query == "" && u.app.usage != nil {
		shown = catalog.OrderByUsage(shown, u.app.usage.Score)
	}
	u.shown = shown

	children := u.list.GetChildren()
	children.Foreach(func(child interface{}) {
		if row, ok := child.(*gtk.ListBoxRow); ok {
			u.list.Remove(row)
		}
	})

	for _, p := range shown {
		row, err := newPluginRow(p)
		if err != nil {
			log.Warnf("[UI] Failed to create row for %s: %v", p.URI, err)
			continue
		}
		u.list.Add(row)
	}
	u.list.ShowAll()
}

func newPluginRow(p catalog.Plugin) (*gtk.ListBoxRow, error) {
	row, err := gtk.ListBoxRowNew()
	if err != nil {
		return nil, err
	}
	label, err := gtk.LabelNew(p.Name)
	if err != nil {
		return nil, err
	}
	label.SetHAlign(gtk.ALIGN_START)
	label.SetMarginStart(6)
	label.SetMarginTop(2)
	label.SetMarginBottom(2)
	row.Add(label)
	if tip := p.Tooltip(); tip != "" {
		row.SetTooltipText(tip)
	}
	return row, nil
}

func (u *UI) onRowActivated(row *gtk.ListBoxRow) {
	index := row.GetIndex()
	if index < 0 || index >= len(u.shown) {
		return
	}
	u.app.ShowPresets(u.shown[index])
}

// ShowPresetMenu pops up "Default" plus one entry per preset of plugin.
func (u *UI) ShowPresetMenu(plugin catalog.Plugin, presets []catalog.Preset) {
	if u.menu != nil {
		u.menu.Destroy()
		u.menu = nil
	}

	menu, err := gtk.MenuNew()
	if err != nil {
		log.Warnf("[UI] Failed to create preset menu: %v", err)
		return
	}

	def, err := gtk.MenuItemNewWithMnemonic("_Default")
	if err != nil {
		log.Warnf("[UI] Failed to create menu item: %v", err)
		return
	}
	def.Connect("activate", func() { u.app.Launch(plugin, nil) })
	menu.Append(def)

	if len(presets) > 0 {
		if sep, err := gtk.SeparatorMenuItemNew(); err == nil {
			menu.Append(sep)
		}
	}
	for _, preset := range presets {
		preset := preset
		item, err := gtk.MenuItemNewWithLabel(preset.Label)
		if err != nil {
			continue
		}
		if preset.URI == "" {
			item.SetSensitive(false)
		} else {
			item.Connect("activate", func() { u.app.Launch(plugin, &preset) })
		}
		menu.Append(item)
	}

	menu.ShowAll()
	menu.PopupAtPointer(nil)
	u.menu = menu
}

// ClearSelection drops the selected row after a launch.
func (u *UI) ClearSelection() {
	u.list.UnselectAll()
}
