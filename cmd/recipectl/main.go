// Package main provides the entry point for the recipectl CLI.
package main

import (
	"fmt"
	"os"

	"recipe-ingest-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
