// Package main provides the labelattn CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/labelattn/cmd/labelattn/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
