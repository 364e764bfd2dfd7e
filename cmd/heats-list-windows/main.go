// heats-list-windows emits the open windows as JSONL menu items, using
// wmctrl for enumeration so it works on any EWMH window manager.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/runger/heats/internal/item"
)

func main() {
	windows, err := listWindows()
	if err != nil {
		// No window manager or no wmctrl; an empty provider is fine.
		os.Exit(0)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for _, w := range windows {
		line, err := json.Marshal(w)
		if err != nil {
			continue
		}
		fmt.Fprintln(out, string(line))
	}
}

// listWindows parses "wmctrl -lxp" output. Each line is:
//
//	0x03a00003  0 1234   app.Class  host  Window Title
func listWindows() ([]item.MenuItem, error) {
	cmd := exec.Command("wmctrl", "-lxp")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var items []item.MenuItem
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		wid := fields[0]
		desktop, err := strconv.Atoi(fields[1])
		if err != nil || desktop < 0 {
			// Sticky/dock windows report desktop -1; skip them.
			continue
		}
		pid, _ := strconv.Atoi(fields[2])
		class := fields[3]
		title := strings.Join(fields[5:], " ")
		if title == "" {
			continue
		}

		items = append(items, item.MenuItem{
			Title:    title,
			Subtitle: class,
			Data: map[string]any{
				"wid": wid,
				"pid": pid,
			},
		})
	}
	return items, scanner.Err()
}
