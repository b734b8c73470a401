// Package main provides the QueryPulse CLI.
package main

import (
	"os"

	"github.com/querypulse/querypulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
