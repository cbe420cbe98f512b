// Package main provides the entry point for the dirpoll CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/dirpoll/cmd/dirpoll/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
