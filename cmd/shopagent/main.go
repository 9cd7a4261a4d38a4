package main

import (
	"os"

	"github.com/Idan-Levin/slack-shopping-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
