package main

import (
	"github.com/asad/azctl/internal/cli"
)

// main is the entry point for azctl.
// It delegates to the CLI package which handles command parsing and execution.
func main() {
	cli.Execute()
}
