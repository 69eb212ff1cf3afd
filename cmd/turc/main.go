package main

import (
	"os"

	"github.com/turdm/turc/cli"

	_ "modernc.org/sqlite"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
