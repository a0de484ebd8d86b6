package main

import (
	"os"

	"github.com/z316data/salespipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
