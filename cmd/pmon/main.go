// Package main provides the entry point for the PMON port monitor.
//
// PMON probes TCP, UDP and ping endpoints on a schedule, keeps per-monitor
// uptime statistics and delivers alerts when rules fire.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Version information set during build time
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
