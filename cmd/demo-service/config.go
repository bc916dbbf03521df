/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"path/filepath"
	"strings"

	"github.com/acronis/go-appkit-demo/config"
	"github.com/acronis/go-appkit-demo/httpserver"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/profserver"
	"github.com/acronis/go-appkit-demo/restapi"
)

// Environment variables with this prefix override values from the file (e.g. DEMO_RATELIMIT_PERMITLIMIT).
const envVarsPrefix = "demo"

// AppConfig represents the configuration of the whole service.
type AppConfig struct {
	Server      *httpserver.Config
	Log         *log.Config
	RateLimit   *ratelimit.Config
	OutputCache *outputcache.Config
	Errors      *restapi.Config
	ProfServer  *profserver.Config
}

// NewAppConfig creates a new AppConfig with default values.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:      httpserver.NewDefaultConfig(),
		Log:         log.NewDefaultConfig(),
		RateLimit:   ratelimit.NewDefaultConfig(),
		OutputCache: outputcache.NewDefaultConfig(),
		Errors:      restapi.NewDefaultConfig(),
		ProfServer:  profserver.NewDefaultConfig(),
	}
}

// SetProviderDefaults sets default configuration values of all sections.
func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set sets configuration values of all sections.
func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

// loadAppConfig reads the configuration from the file (if path is not empty) and environment variables.
func loadAppConfig(path string) (*AppConfig, error) {
	cfgLoader := config.NewDefaultLoader(envVarsPrefix)
	cfg := NewAppConfig()
	if path == "" {
		return cfg, cfgLoader.Load(cfg)
	}
	dataType := config.DataTypeYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dataType = config.DataTypeJSON
	}
	return cfg, cfgLoader.LoadFromFile(path, dataType, cfg)
}
