// Package cli provides common utilities for the loro command-line tool.
//
// This package includes:
//   - Configuration management (named contexts, kubectl style)
//   - Output formatting (YAML, JSON, raw)
//   - Directory layout under ~/.loro
//   - Terminal UI styles and the monitor frame renderer
//
// Example usage:
//
//	// Load the config, creating ~/.loro/config.yaml on first use
//	cfg, err := cli.LoadConfig()
//
//	// Resolve the active context
//	cc, err := cfg.ResolveContext("")
//
//	// Print a result
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
