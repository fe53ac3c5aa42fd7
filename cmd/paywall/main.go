package main

import (
	"os"

	"github.com/dmitrymomot/paywall/cmd/paywall/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
