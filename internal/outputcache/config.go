/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit-demo/config"
)

const cfgDefaultKeyPrefix = "outputCache"

const (
	cfgKeyMaxEntries      = "maxEntries"
	cfgKeyCleanupInterval = "cleanupInterval"
	cfgKeyEvictionTimeout = "evictionTimeout"
	cfgKeyPolicies        = "policies"
)

// Default values.
const (
	DefaultMaxEntries      = 1000
	DefaultCleanupInterval = time.Minute
	DefaultEvictionTimeout = 5 * time.Second
)

// PeoplePolicy is the name of the policy (and the tag) for the list of people.
const PeoplePolicy = "People"

// Config represents a set of configuration parameters for output caching.
type Config struct {
	MaxEntries      int           `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`
	EvictionTimeout time.Duration `mapstructure:"evictionTimeout" yaml:"evictionTimeout" json:"evictionTimeout"`
	Policies        []Policy      `mapstructure:"policies" yaml:"policies" json:"policies"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// DefaultPolicies returns policies used when none are configured.
func DefaultPolicies() []Policy {
	return []Policy{{Name: PeoplePolicy, Tags: []string{PeoplePolicy}, VaryByQuery: true}}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		MaxEntries:      DefaultMaxEntries,
		CleanupInterval: DefaultCleanupInterval,
		EvictionTimeout: DefaultEvictionTimeout,
		Policies:        DefaultPolicies(),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for output caching in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxEntries, DefaultMaxEntries)
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
	dp.SetDefault(cfgKeyEvictionTimeout, DefaultEvictionTimeout.String())
}

// Set sets output caching configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("should be > 0"))
	}

	if c.CleanupInterval, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if c.CleanupInterval <= 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("should be > 0"))
	}

	if c.EvictionTimeout, err = dp.GetDuration(cfgKeyEvictionTimeout); err != nil {
		return err
	}
	if c.EvictionTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyEvictionTimeout, fmt.Errorf("should be > 0"))
	}

	c.Policies = nil
	if dp.IsSet(cfgKeyPolicies) {
		if err = dp.UnmarshalKey(cfgKeyPolicies, &c.Policies, config.WithTextUnmarshalerHook()); err != nil {
			return err
		}
	}
	if len(c.Policies) == 0 {
		c.Policies = DefaultPolicies()
	}
	if _, err = NewPolicySet(c.Policies...); err != nil {
		return dp.WrapKeyErr(cfgKeyPolicies, err)
	}
	return nil
}
