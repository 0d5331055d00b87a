package main

import (
	"os"

	"classroom-analytics/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
