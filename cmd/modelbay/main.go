// Package main is the single-binary entrypoint for modelbay.
// One binary carries the daemon, the API server and the CLI.
package main

import "github.com/modelbay/modelbay/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
