package hotkey

import (
	"fmt"
	"strings"

	"github.com/jezek/xgb/xproto"
)

// Binding is a key name plus the primary and fallback modifier masks.
type Binding struct {
	Key          string
	Mods         uint16
	FallbackMods uint16
}

// DefaultBinding is Shift+Escape, falling back to Control+Shift+Escape.
var DefaultBinding = Binding{
	Key:          "Escape",
	Mods:         xproto.ModMaskShift,
	FallbackMods: xproto.ModMaskControl | xproto.ModMaskShift,
}

var modifierMasks = map[string]uint16{
	"shift":   xproto.ModMaskShift,
	"ctrl":    xproto.ModMaskControl,
	"control": xproto.ModMaskControl,
	"alt":     xproto.ModMask1,
	"mod1":    xproto.ModMask1,
	"super":   xproto.ModMask4,
	"mod4":    xproto.ModMask4,
}

func ParseModifiers(names []string) (uint16, error) {
	var mods uint16
	for _, name := range names {
		mask, ok := modifierMasks[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
		mods |= mask
	}
	return mods, nil
}

func ParseBinding(key string, mods, fallback []string) (Binding, error) {
	if key == "" {
		return Binding{}, fmt.Errorf("empty hotkey")
	}
	primary, err := ParseModifiers(mods)
	if err != nil {
		return Binding{}, err
	}
	alt, err := ParseModifiers(fallback)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Key: key, Mods: primary, FallbackMods: alt}, nil
}

func (b Binding) String() string {
	return comboString(b.Mods, b.Key)
}

func (b Binding) FallbackString() string {
	return comboString(b.FallbackMods, b.Key)
}

func comboString(mods uint16, key string) string {
	var parts []string
	if mods&xproto.ModMaskControl != 0 {
		parts = append(parts, "Control")
	}
	if mods&xproto.ModMaskShift != 0 {
		parts = append(parts, "Shift")
	}
	if mods&xproto.ModMask1 != 0 {
		parts = append(parts, "Alt")
	}
	if mods&xproto.ModMask4 != 0 {
		parts = append(parts, "Super")
	}
	return strings.Join(append(parts, key), "+")
}
