// Command visage-daemon is the entrypoint for the visage background
// service (C5): it loads configuration from the environment, verifies
// model integrity, and serves Enroll/Verify/ListModels/RemoveModel/
// Status over D-Bus until terminated.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/visage-project/visage/internal/daemon"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("visage-daemon 1.0.0")
		return
	}

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if err := daemon.Run(logger); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
