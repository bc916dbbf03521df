/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/acronis/go-appkit-demo/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyAlg                 = "alg"
	cfgKeyPermitLimit         = "permitLimit"
	cfgKeyWindow              = "window"
	cfgKeyMaxBurst            = "maxBurst"
	cfgKeyQueueOrder          = "queueOrder"
	cfgKeyQueueLimit          = "queueLimit"
	cfgKeyQueueTimeout        = "queueTimeout"
	cfgKeyRejectionStatusCode = "rejectionStatusCode"
	cfgKeyPartitionBy         = "partitionBy"
	cfgKeyPartitionHeader     = "partitionHeader"
	cfgKeyMaxKeys             = "maxKeys"
)

// Default values.
const (
	DefaultPermitLimit         = 3
	DefaultWindow              = 10 * time.Second
	DefaultConfigQueueTimeout  = 10 * time.Second
	DefaultRejectionStatusCode = http.StatusTooManyRequests
	DefaultMaxKeys             = 10000
)

// Alg is a rate limiting algorithm.
type Alg string

// Rate limiting algorithms.
const (
	AlgFixedWindow   Alg = "fixedWindow"
	AlgSlidingWindow Alg = "slidingWindow"
	AlgLeakyBucket   Alg = "leakyBucket"
)

// QueueOrder is an order in which queued requests are processed.
type QueueOrder string

// QueueOrderOldestFirst is the only supported order.
const QueueOrderOldestFirst QueueOrder = "oldestFirst"

// PartitionBy defines how requests are split into rate limiting partitions.
type PartitionBy string

// Partitioning modes.
const (
	PartitionByGlobal     PartitionBy = "global"
	PartitionByRemoteAddr PartitionBy = "remoteAddr"
	PartitionByHeader     PartitionBy = "header"
)

// Config represents a set of configuration parameters for rate limiting.
type Config struct {
	Alg                 Alg           `mapstructure:"alg" yaml:"alg" json:"alg"`
	PermitLimit         int           `mapstructure:"permitLimit" yaml:"permitLimit" json:"permitLimit"`
	Window              time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	MaxBurst            int           `mapstructure:"maxBurst" yaml:"maxBurst" json:"maxBurst"`
	QueueOrder          QueueOrder    `mapstructure:"queueOrder" yaml:"queueOrder" json:"queueOrder"`
	QueueLimit          int           `mapstructure:"queueLimit" yaml:"queueLimit" json:"queueLimit"`
	QueueTimeout        time.Duration `mapstructure:"queueTimeout" yaml:"queueTimeout" json:"queueTimeout"`
	RejectionStatusCode int           `mapstructure:"rejectionStatusCode" yaml:"rejectionStatusCode" json:"rejectionStatusCode"`
	PartitionBy         PartitionBy   `mapstructure:"partitionBy" yaml:"partitionBy" json:"partitionBy"`
	PartitionHeader     string        `mapstructure:"partitionHeader" yaml:"partitionHeader" json:"partitionHeader"`
	MaxKeys             int           `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Alg:                 AlgFixedWindow,
		PermitLimit:         DefaultPermitLimit,
		Window:              DefaultWindow,
		QueueOrder:          QueueOrderOldestFirst,
		QueueTimeout:        DefaultConfigQueueTimeout,
		RejectionStatusCode: DefaultRejectionStatusCode,
		PartitionBy:         PartitionByGlobal,
		MaxKeys:             DefaultMaxKeys,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for rate limiting in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAlg, string(AlgFixedWindow))
	dp.SetDefault(cfgKeyPermitLimit, DefaultPermitLimit)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyQueueOrder, string(QueueOrderOldestFirst))
	dp.SetDefault(cfgKeyQueueTimeout, DefaultConfigQueueTimeout.String())
	dp.SetDefault(cfgKeyRejectionStatusCode, DefaultRejectionStatusCode)
	dp.SetDefault(cfgKeyPartitionBy, string(PartitionByGlobal))
	dp.SetDefault(cfgKeyMaxKeys, DefaultMaxKeys)
}

var (
	availableAlgs         = []string{string(AlgFixedWindow), string(AlgSlidingWindow), string(AlgLeakyBucket)}
	availableQueueOrders  = []string{string(QueueOrderOldestFirst)}
	availablePartitionBys = []string{string(PartitionByGlobal), string(PartitionByRemoteAddr), string(PartitionByHeader)}
)

// Set sets rate limiting configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var algStr string
	if algStr, err = dp.GetStringFromSet(cfgKeyAlg, availableAlgs, false); err != nil {
		return err
	}
	c.Alg = Alg(algStr)

	if c.PermitLimit, err = dp.GetInt(cfgKeyPermitLimit); err != nil {
		return err
	}
	if c.PermitLimit <= 0 {
		return dp.WrapKeyErr(cfgKeyPermitLimit, fmt.Errorf("should be > 0"))
	}

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("should be > 0"))
	}

	if c.MaxBurst, err = dp.GetInt(cfgKeyMaxBurst); err != nil {
		return err
	}
	if c.MaxBurst < 0 {
		return dp.WrapKeyErr(cfgKeyMaxBurst, fmt.Errorf("should be >= 0"))
	}

	var orderStr string
	if orderStr, err = dp.GetStringFromSet(cfgKeyQueueOrder, availableQueueOrders, false); err != nil {
		return err
	}
	c.QueueOrder = QueueOrder(orderStr)

	if c.QueueLimit, err = dp.GetInt(cfgKeyQueueLimit); err != nil {
		return err
	}
	if c.QueueLimit < 0 {
		return dp.WrapKeyErr(cfgKeyQueueLimit, fmt.Errorf("should be >= 0"))
	}

	if c.QueueTimeout, err = dp.GetDuration(cfgKeyQueueTimeout); err != nil {
		return err
	}
	if c.QueueTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyQueueTimeout, fmt.Errorf("should be > 0"))
	}

	if c.RejectionStatusCode, err = dp.GetInt(cfgKeyRejectionStatusCode); err != nil {
		return err
	}
	if c.RejectionStatusCode < 400 || c.RejectionStatusCode > 599 {
		return dp.WrapKeyErr(cfgKeyRejectionStatusCode, fmt.Errorf("should be a 4xx or 5xx HTTP status code"))
	}

	return c.setPartitioning(dp)
}

func (c *Config) setPartitioning(dp config.DataProvider) error {
	var err error

	var partitionByStr string
	if partitionByStr, err = dp.GetStringFromSet(cfgKeyPartitionBy, availablePartitionBys, false); err != nil {
		return err
	}
	c.PartitionBy = PartitionBy(partitionByStr)

	if c.PartitionHeader, err = dp.GetString(cfgKeyPartitionHeader); err != nil {
		return err
	}
	c.PartitionHeader = strings.TrimSpace(c.PartitionHeader)
	if c.PartitionBy == PartitionByHeader && c.PartitionHeader == "" {
		return dp.WrapKeyErr(cfgKeyPartitionHeader, fmt.Errorf("cannot be empty when partitioning by header"))
	}

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("should be >= 0"))
	}
	if c.PartitionBy == PartitionByGlobal {
		c.MaxKeys = 0
	}
	return nil
}

// NewLimiter creates a limiter for the configured algorithm.
func (c *Config) NewLimiter() (Limiter, error) {
	rate := Rate{Count: c.PermitLimit, Duration: c.Window}
	switch c.Alg {
	case AlgFixedWindow, "":
		return NewFixedWindowLimiter(rate, c.MaxKeys)
	case AlgSlidingWindow:
		return NewSlidingWindowLimiter(rate, c.MaxKeys)
	case AlgLeakyBucket:
		return NewLeakyBucketLimiter(rate, c.MaxBurst, c.MaxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limiting algorithm %q", c.Alg)
	}
}

// NewRequestProcessor creates a request processor with the configured limiter and queue.
func (c *Config) NewRequestProcessor(metrics MetricsCollector) (*RequestProcessor, error) {
	limiter, err := c.NewLimiter()
	if err != nil {
		return nil, fmt.Errorf("new limiter: %w", err)
	}
	return NewRequestProcessorWithOpts(limiter, QueueParams{
		MaxKeys: c.MaxKeys,
		Limit:   c.QueueLimit,
		Timeout: c.QueueTimeout,
	}, RequestProcessorOpts{MetricsCollector: metrics})
}
