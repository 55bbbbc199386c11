// Package main is the entry point for the monkmode command-line tool.
package main

import (
	"os"

	"github.com/Lattixe/MonkMode-windows/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
