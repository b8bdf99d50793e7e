// Package main provides the entityctl CLI.
package main

import (
	"os"

	"github.com/goliatone/go-entity-cache/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
