// heats-focus-window raises and focuses the window with the given ID, the
// action side of the heats-list-windows provider.
package main

import (
	"fmt"
	"os"
	"os/exec"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: heats-focus-window <window-id>")
		os.Exit(2)
	}

	cmd := exec.Command("wmctrl", "-ia", os.Args[1])
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "heats-focus-window: %v\n", err)
		os.Exit(1)
	}
}
