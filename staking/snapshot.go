// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"github.com/vechain/npos/election"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/voters"
)

// ElectingVoters returns the voters of the next election: every nominator not suppressed,
// with its targets narrowed to current candidates, then every candidate voting for itself.
// Voters without active stake are left out.
func (s *Staker) ElectingVoters() ([]election.Voter, error) {
	candidates := make(map[npos.Address]bool)
	var order []npos.Address
	if err := s.voters.IterValidators(func(stash npos.Address, _ *voters.ValidatorPrefs) error {
		candidates[stash] = true
		order = append(order, stash)
		return nil
	}); err != nil {
		return nil, err
	}

	var list []election.Voter
	err := s.voters.IterNominators(func(stash npos.Address, n *voters.Nominations) error {
		if n.Suppressed {
			return nil
		}
		stake, err := s.Score(stash)
		if err != nil || stake.Sign() == 0 {
			return err
		}
		targets := make([]npos.Address, 0, len(n.Targets))
		for _, t := range n.Targets {
			if candidates[t] {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			return nil
		}
		list = append(list, election.Voter{ID: stash, Stake: stake, Targets: targets})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, stash := range order {
		stake, err := s.Score(stash)
		if err != nil {
			return nil, err
		}
		if stake.Sign() == 0 {
			continue
		}
		list = append(list, election.Voter{ID: stash, Stake: stake, Targets: []npos.Address{stash}})
	}
	return list, nil
}

// ElectableTargets returns the candidates with active stake.
func (s *Staker) ElectableTargets() ([]npos.Address, error) {
	var targets []npos.Address
	err := s.voters.IterValidators(func(stash npos.Address, _ *voters.ValidatorPrefs) error {
		stake, err := s.Score(stash)
		if err != nil {
			return err
		}
		if stake.Sign() > 0 {
			targets = append(targets, stash)
		}
		return nil
	})
	return targets, err
}

// Snapshot builds the election input for era.
func (s *Staker) Snapshot(era npos.EraIndex) (*election.Snapshot, error) {
	voterList, err := s.ElectingVoters()
	if err != nil {
		return nil, err
	}
	targets, err := s.ElectableTargets()
	if err != nil {
		return nil, err
	}
	return &election.Snapshot{Era: era, Voters: voterList, Targets: targets}, nil
}
