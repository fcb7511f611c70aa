package main

import (
	"errors"
	"os"

	"github.com/agenthost/chatlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, cli.ErrPartialFailure) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
