// Package main provides the entry point for the gatecode CLI.
package main

import (
	"fmt"
	"os"

	"github.com/gatecode-ai/gatecode/cmd/gatecode/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
