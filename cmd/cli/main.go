package main

import (
	"os"

	"github.com/claimmatrix/claimmatrix/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
