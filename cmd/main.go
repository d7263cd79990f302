package main

import (
	"os"

	"github.com/lexmartem/uznai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
