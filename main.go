package main

import (
	"os"

	"github.com/mockpanel/mockpanel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
