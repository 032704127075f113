// breadboard is the command-line host for the sketch engine: it decodes
// binary sketch files, drives the engine, answers value requests from a
// script and prints the command stream as JSON lines.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
