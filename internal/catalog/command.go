package catalog

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CommandSource reads the plugin list from lv2ls and plugin details from
// lv2info.
type CommandSource struct {
	ListCommand string
	InfoCommand string

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCommandSource(listCommand, infoCommand string) *CommandSource {
	return &CommandSource{
		ListCommand: listCommand,
		InfoCommand: infoCommand,
		run:         runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

func (s *CommandSource) Plugins(ctx context.Context) ([]Plugin, error) {
	uris, err := s.run(ctx, s.ListCommand)
	if err != nil {
		return nil, err
	}
	names, err := s.run(ctx, s.ListCommand, "-n")
	if err != nil {
		log.Warnf("[CATALOG] No plugin names: %v", err)
		names = nil
	}

	plugins := ParsePluginList(string(uris), string(names))
	log.Infof("[CATALOG] Listed %d plugins", len(plugins))
	return plugins, nil
}

func (s *CommandSource) Info(ctx context.Context, uri string) (*Info, error) {
	if s.InfoCommand == "" {
		return &Info{}, nil
	}
	out, err := s.run(ctx, s.InfoCommand, uri)
	if err != nil {
		return nil, err
	}
	return ParseInfo(string(out)), nil
}

// ParsePluginList pairs the URI listing with the name listing, which comes in
// the same order. When the two do not line up the names are dropped and the
// plugins show their URI's last path element instead.
func ParsePluginList(uriOutput, nameOutput string) []Plugin {
	uris := nonEmptyLines(uriOutput)
	names := strings.Split(strings.TrimRight(nameOutput, "\n"), "\n")

	haveNames := nameOutput != "" && len(names) == len(uris)
	if nameOutput != "" && !haveNames {
		log.Warnf("[CATALOG] %d names for %d plugins, using URIs", len(names), len(uris))
	}

	plugins := make([]Plugin, 0, len(uris))
	for i, uri := range uris {
		p := Plugin{URI: uri}
		if haveNames {
			p.Name = strings.TrimSpace(names[i])
		} else {
			p.Name = uriTail(uri)
		}
		plugins = append(plugins, p)
	}
	return plugins
}

func nonEmptyLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func uriTail(uri string) string {
	trimmed := strings.TrimRight(uri, "/#")
	if i := strings.LastIndexAny(trimmed, "/#:"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	return trimmed
}

var (
	fieldLine        = regexp.MustCompile(`^\t([A-Za-z][A-Za-z ]*):\s*(.*)$`)
	continuationLine = regexp.MustCompile(`^\t +(\S.*)$`)
)

// ParseInfo reads the top-level fields of lv2info output. A field's value may
// continue on following lines indented with spaces; the preset list is such
// a continuation of the "Presets" field.
func ParseInfo(output string) *Info {
	fields := make(map[string][]string)
	current := ""

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \r")

		if m := fieldLine.FindStringSubmatch(line); m != nil {
			current = m[1]
			if v := strings.TrimSpace(m[2]); v != "" {
				fields[current] = append(fields[current], v)
			}
			continue
		}
		if m := continuationLine.FindStringSubmatch(line); m != nil && current != "" {
			fields[current] = append(fields[current], strings.TrimSpace(m[1]))
			continue
		}
		// Port blocks and blank lines end the current field.
		current = ""
	}

	info := &Info{
		Class:  first(fields["Class"]),
		Author: first(fields["Author"]),
	}
	if info.Author == "" {
		info.Author = first(fields["Project"])
	}
	for _, label := range fields["Presets"] {
		p := Preset{Label: label}
		if strings.HasPrefix(label, "<") && strings.HasSuffix(label, ">") {
			p.URI = strings.Trim(label, "<>")
			p.Label = uriTail(p.URI)
		}
		info.Presets = append(info.Presets, p)
	}
	sort.SliceStable(info.Presets, func(i, j int) bool {
		return info.Presets[i].Label < info.Presets[j].Label
	})
	return info
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
