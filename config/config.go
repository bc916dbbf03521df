/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration of the demo service from YAML/JSON files and environment variables.
// Each component of the service (HTTP server, logger, rate limiter, output cache) exposes its own Config
// that implements the Config interface, and Loader fills all of them from a single DataProvider.
package config

import "reflect"

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// CallSetProviderDefaultsForFields finds all initialized (non-nil) exported fields of the passed object
// that implement Config interface and calls SetProviderDefaults() method for each of them.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	for _, fc := range fieldConfigs(obj, dp) {
		fc.cfg.SetProviderDefaults(fc.dp)
	}
}

// CallSetForFields finds all initialized (non-nil) exported fields of the passed object
// that implement Config interface and calls Set() method for each of them.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	for _, fc := range fieldConfigs(obj, dp) {
		if err := fc.cfg.Set(fc.dp); err != nil {
			return err
		}
	}
	return nil
}

type fieldConfig struct {
	cfg Config
	dp  DataProvider
}

func fieldConfigs(obj interface{}, dp DataProvider) []fieldConfig {
	el := reflect.ValueOf(obj).Elem()
	var res []fieldConfig
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		field := el.Field(i)
		if field.Kind() == reflect.Ptr && field.IsNil() {
			continue
		}
		c, ok := field.Interface().(Config)
		if !ok {
			continue
		}
		cDp := dp
		if kp, ok := c.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
			cDp = NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
		}
		res = append(res, fieldConfig{c, cDp})
	}
	return res
}
