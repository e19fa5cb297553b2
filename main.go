// ./main.go
package main

import (
	"github.com/vantagesec/hypergraph-cli/cmd"
)

// main is the entry point for the hypergraph CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
