package main

import (
	"os"

	"github.com/wonny/mcrisk/cmd/mcrisk/commands"
)

// main is the entry point for the mcrisk CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/mcrisk [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
