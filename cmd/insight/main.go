package main

import (
	"os"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/cli"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(int(cli.Run(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})))
}
