// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	_ "embed"
	"math/big"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/slashing"
	"github.com/vechain/npos/staking/voters"
)

//go:embed default.yaml
var defaultScenario []byte

// Balance is a genesis endowment.
type Balance struct {
	Account npos.Address `yaml:"account"`
	Amount  *big.Int     `yaml:"amount"`
}

// Step is a staking call applied when a block is produced.
type Step struct {
	Block      uint32         `yaml:"block"`
	Action     string         `yaml:"action"`
	Stash      npos.Address   `yaml:"stash"`
	Controller npos.Address   `yaml:"controller"`
	Payee      npos.Address   `yaml:"payee"`
	Amount     *big.Int       `yaml:"amount"`
	Targets    []npos.Address `yaml:"targets"`
	Commission npos.Perbill   `yaml:"commission"`
	Fraction   npos.Perbill   `yaml:"fraction"`
	Reporters  []npos.Address `yaml:"reporters"`
	// Era defaults to the era before the active one for payouts.
	Era  *uint32 `yaml:"era"`
	Mode string  `yaml:"mode"`
}

// Scenario is the whole setup of a simulation.
type Scenario struct {
	Config   staking.Config  `yaml:"config"`
	Genesis  staking.Genesis `yaml:"genesis"`
	Balances []Balance       `yaml:"balances"`
	Steps    []Step          `yaml:"steps"`
	// Restricted accounts can not add stake.
	Restricted []npos.Address `yaml:"restricted"`
}

// loadScenario decodes a scenario file, or the built-in one when path is empty.
func loadScenario(path string) (*Scenario, error) {
	content := defaultScenario
	if path != "" {
		var err error
		if content, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read scenario")
		}
	}
	sc := &Scenario{Config: staking.DefaultConfig()}
	if err := yaml.Unmarshal(content, sc); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if err := sc.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "scenario config")
	}
	for i, step := range sc.Steps {
		if _, ok := actions[step.Action]; !ok {
			return nil, errors.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	sort.SliceStable(sc.Steps, func(i, j int) bool { return sc.Steps[i].Block < sc.Steps[j].Block })
	return sc, nil
}

// endow mints the genesis balances.
func (sc *Scenario) endow(cur *currency.Balances) error {
	for _, b := range sc.Balances {
		if b.Amount == nil {
			return errors.Errorf("balance of %v without amount", b.Account)
		}
		if err := cur.Mint(b.Account, b.Amount); err != nil {
			return errors.Wrapf(err, "endow %v", b.Account)
		}
	}
	return nil
}

// filter restricts the accounts listed by the scenario.
func (sc *Scenario) filter() staking.Filter {
	restricted := make(map[npos.Address]struct{}, len(sc.Restricted))
	for _, a := range sc.Restricted {
		restricted[a] = struct{}{}
	}
	return staking.FilterFunc(func(stash npos.Address) bool {
		_, ok := restricted[stash]
		return ok
	})
}

// StepsAt returns the steps of block.
func (sc *Scenario) StepsAt(block uint32) []Step {
	i := sort.Search(len(sc.Steps), func(i int) bool { return sc.Steps[i].Block >= block })
	j := i
	for j < len(sc.Steps) && sc.Steps[j].Block == block {
		j++
	}
	return sc.Steps[i:j]
}

type actionFunc func(s *staking.Staker, cur *currency.Balances, step *Step) error

var actions = map[string]actionFunc{
	"fund": func(_ *staking.Staker, cur *currency.Balances, step *Step) error {
		return cur.Mint(step.Stash, step.Amount)
	},
	"bond": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		payee := bonding.RewardDestination{Kind: bonding.Staked}
		if step.Controller.IsZero() || step.Controller == step.Stash {
			return s.Bond(step.Stash, step.Amount, payee)
		}
		return s.BondWithController(step.Stash, step.Controller, step.Amount, payee)
	},
	"virtual-bond": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.VirtualBond(step.Stash, step.Amount, step.Payee)
	},
	"bond-extra": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.BondExtra(step.Stash, step.Amount)
	},
	"unbond": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.Unbond(step.Stash, step.Amount)
	},
	"withdraw": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.WithdrawUnbonded(step.Stash)
	},
	"validate": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.Validate(step.Stash, voters.ValidatorPrefs{Commission: step.Commission})
	},
	"nominate": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.Nominate(step.Stash, step.Targets)
	},
	"chill": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		return s.Chill(step.Stash)
	},
	"offence": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		current, err := s.CurrentSession()
		if err != nil {
			return err
		}
		_, err = s.OnOffence([]slashing.Offence{{
			Offender:  step.Stash,
			Reporters: step.Reporters,
			Fraction:  step.Fraction,
		}}, current)
		return err
	},
	"force": func(s *staking.Staker, _ *currency.Balances, step *Step) error {
		switch step.Mode {
		case "new":
			return s.ForceNewEra()
		case "none":
			return s.ForceNoEras()
		case "always":
			return s.ForceNewEraAlways()
		default:
			return errors.Errorf("unknown force mode %q", step.Mode)
		}
	},
	"payout-all": payoutAll,
}

// payoutAll claims every unclaimed page of the era's validators on their behalf.
func payoutAll(s *staking.Staker, _ *currency.Balances, step *Step) error {
	var era npos.EraIndex
	if step.Era != nil {
		era = npos.EraIndex(*step.Era)
	} else {
		active, err := s.ActiveEra()
		if err != nil {
			return err
		}
		if active == nil || active.Index == 0 {
			return nil
		}
		era = active.Index - 1
	}
	elected, err := s.ElectedValidators(era)
	if err != nil {
		return err
	}
	for _, stash := range elected {
		pages, err := s.PageCount(era, stash)
		if err != nil {
			return err
		}
		for page := uint32(0); page < pages; page++ {
			err := s.PayoutStakersByPage(stash, stash, era, npos.PageIndex(page))
			if err != nil && !errors.Is(err, reverts.ErrAlreadyClaimed) {
				return errors.Wrapf(err, "payout %v page %d", stash, page)
			}
		}
	}
	return nil
}

// apply runs the steps of block, logging the ones that fail.
func (sc *Scenario) apply(block uint32, s *staking.Staker, cur *currency.Balances) int {
	failed := 0
	for _, step := range sc.StepsAt(block) {
		if err := actions[step.Action](s, cur, &step); err != nil {
			logger.Warn("scenario step failed", "block", block, "action", step.Action, "stash", step.Stash, "err", err)
			failed++
			continue
		}
		logger.Debug("scenario step applied", "block", block, "action", step.Action, "stash", step.Stash)
	}
	return failed
}
