// ./main.go
package main

import (
	"github.com/nlavaggi/retex/cmd"
)

// main is the entry point for the retex CLI.
func main() {
	// Command-line parsing, configuration and execution all live in cmd.
	cmd.Execute()
}
