// Package main is the entry point for the loro CLI.
//
// Usage:
//
//	loro [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve    - Run the playback engine (websocket/RTP ingest, metrics)
//	play     - Play local audio files or sound bank clips
//	say      - Speak a reply script (text and sound cues)
//	vocab    - Vocabulary book maintenance
//	monitor  - Live TUI over a running engine's stats
//	config   - Configuration management (contexts)
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/loroworks/loro/go/cmd/loro/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
