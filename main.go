package main

import (
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flammablebunny/nixcraft/cmd"
)

// main sets up logging based on the DEBUG_NIXCRAFT environment variable,
// starts a goroutine to listen for interrupt signals, and executes the root
// command.
func main() {
	configureLogLevelFromEnv()

	// An interrupt exits immediately; no partially-completed login is ever
	// persisted because persistence happens only after the chain succeeds.
	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute()
}

func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_NIXCRAFT") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

func handleInterrupt(stopChan chan os.Signal, logFatal func(string), exit func(int)) {
	<-stopChan
	logFatal("Interrupt signal received. Exiting...")
	exit(1)
}
