/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Demo client that drives the rate limiting and output caching scenarios against a running demo service.
package main

import (
	"context"
	"flag"
	"fmt"
	golog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acronis/go-appkit-demo/httpclient"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/retry"
)

type clientFlags struct {
	baseURL          string
	burst            int
	rps              float64
	maxRetryAttempts int
	maxRetryAfter    time.Duration
	readyTimeout     time.Duration
	logLevel         string
	firstName        string
	lastName         string
}

func parseFlags(fs *flag.FlagSet, args []string) (clientFlags, error) {
	var f clientFlags
	fs.StringVar(&f.baseURL, "url", "http://localhost:8080", "base URL of the demo service")
	fs.IntVar(&f.burst, "burst", 10, "number of concurrent list requests")
	fs.Float64Var(&f.rps, "rps", 0, "client side rate limit in requests per second (0 disables pacing)")
	fs.IntVar(&f.maxRetryAttempts, "max-retries", httpclient.DefaultMaxRetryAttempts,
		"maximum number of retries of throttled requests (negative disables retries)")
	fs.DurationVar(&f.maxRetryAfter, "max-retry-after", httpclient.DefaultMaxRetryAfter,
		"longest Retry-After the client agrees to wait for")
	fs.DurationVar(&f.readyTimeout, "ready-timeout", 30*time.Second, "how long to wait for the service to become ready")
	fs.StringVar(&f.logLevel, "log-level", string(log.LevelInfo), "logging level (error, warn, info, debug)")
	fs.StringVar(&f.firstName, "first-name", "Grace", "first name of the person to add")
	fs.StringVar(&f.lastName, "last-name", "Hopper", "last name of the person to add")
	if err := fs.Parse(args); err != nil {
		return clientFlags{}, err
	}
	if f.burst <= 0 {
		return clientFlags{}, fmt.Errorf("burst must be positive, got %d", f.burst)
	}
	if f.rps < 0 {
		return clientFlags{}, fmt.Errorf("rps must not be negative, got %v", f.rps)
	}
	return f, nil
}

func main() {
	if err := runClient(); err != nil {
		golog.Fatal(err)
	}
}

func runClient() error {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	logCfg := log.NewDefaultConfig()
	logCfg.Level = log.Level(f.logLevel)
	logCfg.Format = log.FormatText
	logCfg.Output = log.OutputStderr
	logger, loggerClose := log.NewLogger(logCfg)
	defer loggerClose()

	httpClient, err := httpclient.New(httpclient.Opts{
		Logger:           logger,
		RateLimit:        f.rps,
		Burst:            f.burst,
		MaxRetryAttempts: f.maxRetryAttempts,
		MaxRetryAfter:    f.maxRetryAfter,
	})
	if err != nil {
		return fmt.Errorf("create http client: %w", err)
	}
	client := NewClient(f.baseURL, httpClient, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	readyCtx, readyCancel := context.WithTimeout(ctx, f.readyTimeout)
	defer readyCancel()
	if err = client.WaitReady(readyCtx, retry.NewConstantBackoffPolicy(time.Second, 0)); err != nil {
		return fmt.Errorf("wait for service: %w", err)
	}

	return client.RunScenarios(ctx, f.burst, people.Person{FirstName: f.firstName, LastName: f.lastName}, os.Stdout)
}
