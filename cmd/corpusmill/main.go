// Package main is the corpusmill command line entry point.
package main

import (
	"os"

	"corpusmill/internal/cli"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
