// Command takesplit cuts a voice-over session recording into one clip per
// script line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "takesplit:", err)
		}
		os.Exit(1)
	}
}
