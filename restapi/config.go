/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import "github.com/acronis/go-appkit-demo/config"

const cfgDefaultKeyPrefix = "errors"

const (
	cfgKeyPlainText     = "plainText"
	cfgKeyExposeDetails = "exposeDetails"
)

// Config represents a set of configuration parameters for error responses.
type Config struct {
	// PlainText makes problems be written as "<reason phrase>\r\nRequest ID: <id>".
	PlainText bool `mapstructure:"plainText" yaml:"plainText" json:"plainText"`

	// ExposeDetails makes problems contain the detail member (e.g. the text of the failure).
	ExposeDetails bool `mapstructure:"exposeDetails" yaml:"exposeDetails" json:"exposeDetails"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{ExposeDetails: true}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for error responses in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyPlainText, false)
	dp.SetDefault(cfgKeyExposeDetails, true)
}

// Set sets error responses configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.PlainText, err = dp.GetBool(cfgKeyPlainText); err != nil {
		return err
	}
	if c.ExposeDetails, err = dp.GetBool(cfgKeyExposeDetails); err != nil {
		return err
	}
	return nil
}

// ProblemResponder returns the responder configured to write problems the configured way.
func (c *Config) ProblemResponder() ProblemResponder {
	return ProblemResponder{PlainText: c.PlainText, HideDetails: !c.ExposeDetails}
}
