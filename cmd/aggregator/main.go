package main

import (
	"os"

	"github.com/Agentopians/WeAi/cmd/aggregator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
