// Package main is the entry point for the signald trading daemon.
package main

import (
	"os"

	"go-signals/cmd/signald/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
