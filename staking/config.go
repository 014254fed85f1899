// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/npos/npos"
)

// Config holds the engine parameters. It is fixed for the lifetime of a Staker.
type Config struct {
	SessionsPerEra     uint32 `yaml:"sessions-per-era"`
	BondingDuration    uint32 `yaml:"bonding-duration"`
	SlashDeferDuration uint32 `yaml:"slash-defer-duration"`
	HistoryDepth       uint32 `yaml:"history-depth"`
	// ElectionLookahead is the number of sessions between requesting an election and the era start.
	// Zero elects at the last session end of the era, leaving no session to poll a late result.
	ElectionLookahead uint32 `yaml:"election-lookahead"`

	MaxExposurePageSize uint32 `yaml:"max-exposure-page-size"`
	MaxUnlockingChunks  uint32 `yaml:"max-unlocking-chunks"`
	MaxValidatorSet     uint32 `yaml:"max-validator-set"`
	ValidatorCount      uint32 `yaml:"validator-count"`
	MinValidatorCount   uint32 `yaml:"min-validator-count"`
	MaxBackersPerWinner uint32 `yaml:"max-backers-per-winner"`
	MaxNominations      uint32 `yaml:"max-nominations"`
	// MaxValidatorIntentions caps the validator candidates, zero is unbounded.
	MaxValidatorIntentions uint32 `yaml:"max-validator-intentions"`

	MinCommission       npos.Perbill `yaml:"min-commission"`
	SlashRewardFraction npos.Perbill `yaml:"slash-reward-fraction"`
	MinValidatorBond    *big.Int     `yaml:"min-validator-bond"`
	MinNominatorBond    *big.Int     `yaml:"min-nominator-bond"`

	MaxControllersInDeprecationBatch uint32 `yaml:"max-controllers-in-deprecation-batch"`
}

// DefaultConfig returns the parameters of the reference runtime.
func DefaultConfig() Config {
	return Config{
		SessionsPerEra:     3,
		BondingDuration:    3,
		SlashDeferDuration: 0,
		HistoryDepth:       80,
		ElectionLookahead:  1,

		MaxExposurePageSize: 64,
		MaxUnlockingChunks:  32,
		MaxValidatorSet:     100,
		ValidatorCount:      2,
		MinValidatorCount:   0,
		MaxBackersPerWinner: 256,
		MaxNominations:      16,

		SlashRewardFraction: npos.PerbillFromPercent(10),
		MinValidatorBond:    new(big.Int),
		MinNominatorBond:    new(big.Int),

		MaxControllersInDeprecationBatch: 5900,
	}
}

// Validate rejects parameter combinations the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.SessionsPerEra == 0:
		return errors.New("sessions per era must be positive")
	case c.ElectionLookahead >= c.SessionsPerEra:
		return errors.Errorf("election lookahead %d must be below sessions per era %d", c.ElectionLookahead, c.SessionsPerEra)
	case c.SlashDeferDuration > 0 && c.SlashDeferDuration >= c.BondingDuration:
		// a deferred slash applies while its backers are still bonded
		return errors.Errorf("slash defer duration %d not below bonding duration %d", c.SlashDeferDuration, c.BondingDuration)
	case c.HistoryDepth < c.BondingDuration:
		return errors.Errorf("history depth %d shorter than bonding duration %d", c.HistoryDepth, c.BondingDuration)
	case c.MaxExposurePageSize == 0:
		return errors.New("exposure page size must be positive")
	case c.MaxUnlockingChunks == 0:
		return errors.New("max unlocking chunks must be positive")
	case c.ValidatorCount == 0 || c.ValidatorCount > c.MaxValidatorSet:
		return errors.Errorf("validator count %d must be in [1, %d]", c.ValidatorCount, c.MaxValidatorSet)
	case c.MinValidatorCount > c.ValidatorCount:
		return errors.Errorf("min validator count %d above validator count %d", c.MinValidatorCount, c.ValidatorCount)
	case c.MaxBackersPerWinner == 0:
		return errors.New("max backers per winner must be positive")
	case c.MaxNominations == 0:
		return errors.New("max nominations must be positive")
	case c.MinCommission > npos.PerbillOne || c.SlashRewardFraction > npos.PerbillOne:
		return errors.New("fraction above 100%")
	case c.MinValidatorBond != nil && c.MinValidatorBond.Sign() < 0,
		c.MinNominatorBond != nil && c.MinNominatorBond.Sign() < 0:
		return errors.New("negative minimum bond")
	}
	return nil
}

// LoadConfig reads a yaml file over the default parameters.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c *Config) validatorBond() *big.Int {
	if c.MinValidatorBond == nil {
		return new(big.Int)
	}
	return c.MinValidatorBond
}

func (c *Config) nominatorBond() *big.Int {
	if c.MinNominatorBond == nil {
		return new(big.Int)
	}
	return c.MinNominatorBond
}
