// heats-list-apps emits installed desktop applications as JSONL menu
// items, one per .desktop entry found in the XDG data directories.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/runger/heats/internal/item"
)

func main() {
	seen := make(map[string]bool)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for _, dir := range applicationDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".desktop") {
				continue
			}
			// Earlier data dirs shadow later ones, per the XDG spec.
			if seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true

			path := filepath.Join(dir, entry.Name())
			app, ok := parseDesktopFile(path)
			if !ok {
				continue
			}
			line, err := json.Marshal(app)
			if err != nil {
				continue
			}
			fmt.Fprintln(out, string(line))
		}
	}
}

func applicationDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(dataDirs, ":") {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return dirs
}

// parseDesktopFile reads the [Desktop Entry] section. Hidden and NoDisplay
// entries are skipped, as are ones without a name.
func parseDesktopFile(path string) (item.MenuItem, bool) {
	f, err := os.Open(path)
	if err != nil {
		return item.MenuItem{}, false
	}
	defer f.Close()

	var name, comment, icon string
	inEntry := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "[Desktop Entry]":
			inEntry = true
			continue
		case strings.HasPrefix(line, "["):
			inEntry = false
			continue
		}
		if !inEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			if name == "" {
				name = value
			}
		case "Comment":
			if comment == "" {
				comment = value
			}
		case "Icon":
			icon = value
		case "NoDisplay", "Hidden":
			if value == "true" {
				return item.MenuItem{}, false
			}
		}
	}
	if err := scanner.Err(); err != nil || name == "" {
		return item.MenuItem{}, false
	}

	subtitle := comment
	if subtitle == "" {
		subtitle = path
	}
	return item.MenuItem{
		Title:    name,
		Subtitle: subtitle,
		IconPath: icon,
		Data:     map[string]any{"path": path},
	}, true
}
