/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfgYAML    string
		wantCfg    *Config
		wantErrMsg string
	}{
		{
			name:    "defaults",
			cfgYAML: "",
			wantCfg: NewDefaultConfig(),
		},
		{
			name:    "plain text without details",
			cfgYAML: "errors:\n  plainText: true\n  exposeDetails: false\n",
			wantCfg: &Config{PlainText: true},
		},
		{
			name:       "invalid value",
			cfgYAML:    "errors:\n  plainText: sometimes\n",
			wantErrMsg: "errors.plainText: ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgYAML), config.DataTypeYAML, cfg)
			if tt.wantErrMsg != "" {
				require.ErrorContains(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCfg, cfg)
		})
	}
}

func TestConfig_ProblemResponder(t *testing.T) {
	require.Equal(t, ProblemResponder{}, NewDefaultConfig().ProblemResponder())
	require.Equal(t, ProblemResponder{PlainText: true, HideDetails: true}, (&Config{PlainText: true}).ProblemResponder())
}
