// Command digestai serves the research assistant and browser task APIs and
// offers local research and graph inspection commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
