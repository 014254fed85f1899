// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/npos"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no sessions", func(c *Config) { c.SessionsPerEra = 0 }},
		{"lookahead whole era", func(c *Config) { c.ElectionLookahead = c.SessionsPerEra }},
		{"single session era lookahead", func(c *Config) { c.SessionsPerEra, c.ElectionLookahead = 1, 1 }},
		{"defer as long as bonding", func(c *Config) { c.SlashDeferDuration = c.BondingDuration }},
		{"defer past bonding", func(c *Config) { c.SlashDeferDuration, c.BondingDuration = 6, 3 }},
		{"short history", func(c *Config) { c.HistoryDepth = c.BondingDuration - 1 }},
		{"validator count", func(c *Config) { c.ValidatorCount = c.MaxValidatorSet + 1 }},
		{"min validators", func(c *Config) { c.MinValidatorCount = c.ValidatorCount + 1 }},
		{"reward fraction", func(c *Config) { c.SlashRewardFraction = npos.PerbillOne + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lookahead zero", func(c *Config) { c.ElectionLookahead = 0 }},
		{"single session era", func(c *Config) { c.SessionsPerEra, c.ElectionLookahead = 1, 0 }},
		{"defer below bonding", func(c *Config) { c.SlashDeferDuration = c.BondingDuration - 1 }},
		{"no bonding no defer", func(c *Config) { c.BondingDuration, c.SlashDeferDuration = 0, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staking.yaml")
	content := `
sessions-per-era: 6
bonding-duration: 28
history-depth: 84
election-lookahead: 2
min-validator-bond: 1000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), cfg.SessionsPerEra)
	assert.Equal(t, uint32(28), cfg.BondingDuration)
	assert.Equal(t, uint32(84), cfg.HistoryDepth)
	assert.Equal(t, int64(1000), cfg.MinValidatorBond.Int64())
	assert.Equal(t, DefaultConfig().MaxExposurePageSize, cfg.MaxExposurePageSize)

	require.NoError(t, os.WriteFile(path, []byte("history-depth: 1\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
