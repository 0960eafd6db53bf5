// Package main is the world engine's entry point.
package main

import (
	"fmt"
	"os"

	"github.com/piquet-h/worldengine/cmd/worldengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
