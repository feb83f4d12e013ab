// Package catalog answers the two questions the launcher asks about installed
// LV2 plugins: which plugins exist, and which presets a plugin ships.
package catalog

import (
	"context"
	"fmt"
	"sort"
)

type Plugin struct {
	URI    string
	Name   string
	Class  string
	Author string
}

// Tooltip is the class label followed by the author, if known.
func (p Plugin) Tooltip() string {
	if p.Author == "" {
		return p.Class
	}
	return p.Class + " \nby " + p.Author
}

type Preset struct {
	Label string
	URI   string
}

// Info is the per-plugin detail that is expensive to fetch.
type Info struct {
	Class   string
	Author  string
	Presets []Preset
}

type Source interface {
	Plugins(ctx context.Context) ([]Plugin, error)
	Info(ctx context.Context, uri string) (*Info, error)
}

// Classes returns the sorted, de-duplicated class labels.
func Classes(plugins []Plugin) []string {
	seen := make(map[string]bool)
	var classes []string
	for _, p := range plugins {
		if p.Class == "" || seen[p.Class] {
			continue
		}
		seen[p.Class] = true
		classes = append(classes, p.Class)
	}
	sort.Strings(classes)
	return classes
}

// Valid reports whether the plugin has a name to show. Plugins without one
// are listed by the source but skipped by the launcher.
func (p Plugin) Valid() bool {
	return p.Name != ""
}

// Stats is the summary shown as the window tooltip.
func Stats(plugins []Plugin) string {
	valid, invalid := 0, 0
	for _, p := range plugins {
		if p.Valid() {
			valid++
		} else {
			invalid++
		}
	}
	return fmt.Sprintf("%d valid plugins installed\n%d invalid plugins found", valid, invalid)
}
