package main

import (
	"os"

	"github.com/yadarochka/quizz-room-server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
