// Package cli provides common CLI utilities for giztoy command-line tools.
//
// This package includes:
//   - Profile management (named model settings, kubectl-like)
//   - Output formatting (JSON, YAML, raw)
//   - Profile file loading (YAML/JSON)
//   - Styled terminal messages and summary boxes
//
// Configuration is stored in ~/.giztoy/<app>/config.yaml.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("spkembed")
//
//	// Named profile, else the current one, else empty
//	p, err := cfg.ResolveProfile(name)
//
//	cli.Output(report, cli.OutputOptions{Format: cli.FormatJSON})
package cli
