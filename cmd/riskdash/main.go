package main

import (
	"os"

	"github.com/wonny/riskdash/cmd/riskdash/commands"
)

// main is the entry point for the riskdash CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/riskdash [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
