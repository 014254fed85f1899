// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testnode

import (
	"errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/node"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
)

var errEraNotReached = errors.New("era not reached")

// Node is a staking node backed by memory stores, with a clock advancing one session length per block.
type Node struct {
	*node.Node
	Staker   *staking.Staker
	Currency *currency.Balances
	Events   *eventdb.EventDB

	db  *lvldb.LevelDB
	now uint64
}

// ProduceUntilEra produces blocks until era is active, giving up after limit blocks.
func (n *Node) ProduceUntilEra(era npos.EraIndex, limit int) error {
	for i := 0; i < limit; i++ {
		var active npos.EraIndex
		if err := n.View(func(s *staking.Staker) error {
			info, err := s.ActiveEra()
			if err != nil {
				return err
			}
			active = info.Index
			return nil
		}); err != nil {
			return err
		}
		if active >= era {
			return nil
		}
		if err := n.Produce(); err != nil {
			return err
		}
	}
	return errEraNotReached
}

func (n *Node) Close() {
	if n.Events != nil {
		n.Events.Close()
	}
	if n.db != nil {
		n.db.Close()
	}
}
