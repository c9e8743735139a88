package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elastic-ops/eshealth"
	"github.com/elastic-ops/eshealth/pkg/logging"
)

var version = "dev"

func main() {
	// Initialize logging
	logging.Setup()

	var (
		configPath    = flag.String("config", "", "path to the configuration file")
		waitForStatus = flag.String("wait-for-status", "", "block until the cluster reaches this status or better (green, yellow, red)")
		waitForNodes  = flag.String("wait-for-nodes", "", "block until this many nodes are available (count or expression like >=10)")
		checkTimeout  = flag.String("timeout", "", "how long the cluster may block before answering (e.g. 90s)")
		watch         = flag.Bool("watch", false, "keep running and re-check on an interval")
		interval      = flag.Duration("interval", 30*time.Second, "check interval in watch mode")
		apiPort       = flag.Int("api-port", 0, "serve the health/status API on this port (watch mode)")
	)
	flag.Parse()

	options := []eshealth.Option{
		eshealth.WithVersion(version),
	}
	if *configPath != "" {
		options = append(options, eshealth.WithConfigPath(*configPath))
	}
	if *waitForStatus != "" {
		options = append(options, eshealth.WithWaitForStatus(*waitForStatus))
	}
	if *waitForNodes != "" {
		options = append(options, eshealth.WithWaitForNodes(*waitForNodes))
	}
	if *checkTimeout != "" {
		options = append(options, eshealth.WithCheckTimeout(*checkTimeout))
	}
	if *watch {
		options = append(options, eshealth.WithInterval(*interval))
	}
	if *apiPort > 0 {
		options = append(options, eshealth.WithAPI(true, *apiPort))
	}

	runner, err := eshealth.New(options...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create runner")
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("cluster health check failed")
		os.Exit(1)
	}
}
