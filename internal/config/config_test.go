package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	SetDefaults()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.45, cfg.Match.Threshold)
	assert.Equal(t, 0.2, cfg.Match.Boost)
	assert.Equal(t, 0.99, cfg.Match.Ceiling)
	assert.Equal(t, 384, cfg.AI.Dimensions)
	assert.Equal(t, 60*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	SetDefaults()
	viper.Set("match.threshold", 0.6)
	viper.Set("ledger.endpoint", "http://localhost:8545")
	viper.Set("ledger.contract", "0x00000000000000000000000000000000000000aa")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Match.Threshold)
	assert.Equal(t, "http://localhost:8545", cfg.Ledger.Endpoint)
}

func TestLoadRejectsInvalidTuning(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "threshold above one", key: "match.threshold", value: 1.5},
		{name: "negative threshold", key: "match.threshold", value: -0.1},
		{name: "ceiling at one", key: "match.ceiling", value: 1.0},
		{name: "negative boost", key: "match.boost", value: -0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			SetDefaults()
			viper.Set(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("WASTEX_TEST_DIR", "/tmp/wastex")

	assert.Equal(t, "/tmp/wastex/data.db", ExpandPath("$WASTEX_TEST_DIR/data.db"))
	assert.Equal(t, "", ExpandPath(""))
	assert.NotContains(t, ExpandPath("~/data.db"), "~")
}
