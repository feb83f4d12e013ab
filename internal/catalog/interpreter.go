package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultInterpreter is preselected when it is installed.
const DefaultInterpreter = "jalv.gtk"

var skippedInterpreters = map[string]bool{
	"jalv.select": true,
	"jalvselect":  true,
}

// DiscoverInterpreters lists the jalv front ends found in the directories of
// pathEnv, a $PATH-style list. The console host "jalv" is listed as
// "jalv -s" so that it shows the plugin's own UI. It returns the sorted list
// and the entry to preselect, which is empty only when nothing was found.
func DiscoverInterpreters(pathEnv string) ([]string, string) {
	seen := make(map[string]bool)
	var found []string

	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.Contains(name, "jalv") || skippedInterpreters[name] {
				continue
			}
			if !isExecutable(filepath.Join(dir, name)) {
				continue
			}
			if name == "jalv" {
				name = "jalv -s"
			}
			if !seen[name] {
				seen[name] = true
				found = append(found, name)
			}
		}
	}
	sort.Strings(found)

	if len(found) == 0 {
		return nil, ""
	}
	if seen[DefaultInterpreter] {
		return found, DefaultInterpreter
	}
	return found, found[0]
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}
