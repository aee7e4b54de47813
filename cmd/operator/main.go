package main

import (
	"os"

	"github.com/Agentopians/WeAi/cmd/operator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
