/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Demo service with rate limiting, output caching and problem details for failures.
package main

import (
	"flag"
	"fmt"
	golog "log"

	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/restapi"
	"github.com/acronis/go-appkit-demo/service"
)

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	cfgPath := flag.String("config", "", "path to the YAML or JSON configuration file")
	flag.Parse()

	cfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	restapi.MustInitAndRegisterMetrics(metricsNamespace)
	defer restapi.UnregisterMetrics()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	return service.New(logger, app).Start()
}
