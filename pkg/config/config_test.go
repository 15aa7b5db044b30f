package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinConfirmationsReadsEnvAtCallTime(t *testing.T) {
	viper.Reset()
	viper.AutomaticEnv()
	bindLegacyEnv()
	setDefaults()

	assert.Equal(t, uint64(3), MinConfirmations())

	t.Setenv("MINIMUM_CONFIRMATION", "7")
	assert.Equal(t, uint64(7), MinConfirmations())

	// 新变量名优先于旧变量名
	t.Setenv("LEDGER_MIN_CONFIRMATION", "2")
	assert.Equal(t, uint64(2), MinConfirmations())
}

func TestLegacyEnvNames(t *testing.T) {
	viper.Reset()
	viper.AutomaticEnv()
	bindLegacyEnv()
	setDefaults()

	t.Setenv("PROVIDER", "http://127.0.0.1:8545")
	t.Setenv("CONTRACT_ADDR", "0x0000000000000000000000000000000000000001")

	var cfg Config
	assert.NoError(t, viper.Unmarshal(&cfg))
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Ledger.RpcUrl)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", cfg.Ledger.ContractAddr)
	assert.Equal(t, uint64(210000), cfg.Ledger.GasLimit)
	assert.Equal(t, uint64(22660777), cfg.Ledger.CreatedBlock)
}

func TestMinConfirmationsKeepsLastGoodValue(t *testing.T) {
	viper.Reset()
	viper.AutomaticEnv()
	bindLegacyEnv()
	setDefaults()

	t.Setenv("MINIMUM_CONFIRMATION", "5")
	require.Equal(t, uint64(5), MinConfirmations())

	for _, bad := range []string{"abc", "-1", "3.5"} {
		t.Setenv("MINIMUM_CONFIRMATION", bad)
		assert.Equal(t, uint64(5), MinConfirmations(), "value %q", bad)
	}

	t.Setenv("MINIMUM_CONFIRMATION", "0")
	assert.Equal(t, uint64(0), MinConfirmations())
}

func TestReloadRejectsMalformedThreshold(t *testing.T) {
	viper.Reset()
	setDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		require.NoError(t, viper.ReadInConfig())
		reload(path)
	}
	viper.SetConfigFile(path)

	write("ledger:\n  min_confirmation: 5\n")
	require.Equal(t, uint64(5), Global.Ledger.MinConfirmation)
	require.Equal(t, uint64(5), MinConfirmations())

	for _, bad := range []string{"abc", "-1", "3.5"} {
		write("ledger:\n  min_confirmation: " + bad + "\n")
		assert.Equal(t, uint64(5), Global.Ledger.MinConfirmation, "value %q", bad)
		assert.Equal(t, uint64(5), MinConfirmations(), "value %q", bad)
	}

	write("ledger:\n  min_confirmation: 4\n")
	assert.Equal(t, uint64(4), Global.Ledger.MinConfirmation)
	assert.Equal(t, uint64(4), MinConfirmations())
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want uint64
		ok   bool
	}{
		{3, 3, true},
		{"7", 7, true},
		{" 2 ", 2, true},
		{float64(4), 4, true},
		{3.5, 0, false},
		{"3.5", 0, false},
		{-1, 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, err := parseThreshold(tt.raw)
		if !tt.ok {
			assert.Error(t, err, "%v", tt.raw)
			continue
		}
		require.NoError(t, err, "%v", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}
