package main

import (
	"os"

	"github.com/ACM-VIT/codex-portal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
