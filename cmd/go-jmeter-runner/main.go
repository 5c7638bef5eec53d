// Package main provides the go-jmeter-runner CLI entry point.
//
// go-jmeter-runner runs JMeter load tests, keeps a Perfana test run alive
// while they execute, and turns the result files and the Perfana assertions
// into a pass/fail verdict and exit code.
package main

import (
	"context"
	"os"

	"github.com/randomizedcoder/go-jmeter-runner/internal/cli"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-jmeter-runner
var version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), version, os.Args[1:], os.Stdout, os.Stderr))
}
