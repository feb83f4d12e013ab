package core

import (
	"os"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"
	log "github.com/sirupsen/logrus"
)

const defaultStyles = `
#plugin-list row {
    padding: 2px 4px;
}

#plugin-list row:selected {
    font-weight: bold;
}

#search-entry {
    min-width: 120px;
}
`

// SetupStyles installs the built-in stylesheet and, if it exists, the user's
// stylesheet at cssFile on top of it.
func SetupStyles(cssFile string) {
	screen, err := gdk.ScreenGetDefault()
	if err != nil || screen == nil {
		log.Warnf("[UI] Failed to get default screen: %v", err)
		return
	}

	provider, err := gtk.CssProviderNew()
	if err != nil {
		log.Warnf("[UI] Failed to create style provider: %v", err)
		return
	}
	if err := provider.LoadFromData(defaultStyles); err != nil {
		log.Warnf("[UI] Failed to load default styles: %v", err)
		return
	}
	gtk.AddProviderForScreen(screen, provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)

	if cssFile == "" {
		return
	}
	data, err := os.ReadFile(cssFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("[UI] Cannot read %s: %v", cssFile, err)
		}
		return
	}
	custom, err := gtk.CssProviderNew()
	if err != nil {
		return
	}
	if err := custom.LoadFromData(string(data)); err != nil {
		log.Warnf("[UI] Invalid stylesheet %s: %v", cssFile, err)
		return
	}
	gtk.AddProviderForScreen(screen, custom, gtk.STYLE_PROVIDER_PRIORITY_USER)
	log.Debugf("[UI] Loaded %s", cssFile)
}
