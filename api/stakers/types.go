// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/exposure"
	"github.com/vechain/npos/staking/slashing"
)

type EraInfo struct {
	ActiveEra      uint32          `json:"activeEra"`
	ActiveEraStart uint64          `json:"activeEraStart"`
	CurrentEra     uint32          `json:"currentEra"`
	Session        uint32          `json:"session"`
	Forcing        string          `json:"forcing"`
	BondedEras     []BondedEra     `json:"bondedEras"`
	Election       *ElectionStatus `json:"election"`
}

type BondedEra struct {
	Era          uint32 `json:"era"`
	StartSession uint32 `json:"startSession"`
}

type ElectionStatus struct {
	TargetEra    uint32 `json:"targetEra"`
	StartSession uint32 `json:"startSession"`
	RequestedAt  uint32 `json:"requestedAt"`
	Polls        uint32 `json:"polls"`
}

type UnlockChunk struct {
	Value *math.HexOrDecimal256 `json:"value"`
	Era   uint32                `json:"era"`
}

type Ledger struct {
	Stash      npos.Address          `json:"stash"`
	Controller npos.Address          `json:"controller"`
	Total      *math.HexOrDecimal256 `json:"total"`
	Active     *math.HexOrDecimal256 `json:"active"`
	Unlocking  []UnlockChunk         `json:"unlocking"`
	Payee      string                `json:"payee"`
	PayeeTo    *npos.Address         `json:"payeeAccount,omitempty"`
}

type Validator struct {
	Stash      npos.Address          `json:"stash"`
	Commission uint32                `json:"commission"`
	Blocked    bool                  `json:"blocked"`
	Stake      *math.HexOrDecimal256 `json:"stake"`
}

type Nominations struct {
	Targets     []npos.Address `json:"targets"`
	SubmittedIn uint32         `json:"submittedIn"`
	Suppressed  bool           `json:"suppressed"`
}

type Exposure struct {
	Stash          npos.Address          `json:"stash"`
	Total          *math.HexOrDecimal256 `json:"total"`
	Own            *math.HexOrDecimal256 `json:"own"`
	NominatorCount uint32                `json:"nominatorCount"`
	PageCount      uint32                `json:"pageCount"`
	Commission     uint32                `json:"commission"`
	ClaimedPages   []uint32              `json:"claimedPages"`
}

type Individual struct {
	Who   npos.Address          `json:"who"`
	Value *math.HexOrDecimal256 `json:"value"`
}

type ExposurePage struct {
	PageTotal *math.HexOrDecimal256 `json:"pageTotal"`
	Others    []Individual          `json:"others"`
}

type Points struct {
	Who    npos.Address `json:"who"`
	Points uint64       `json:"points"`
}

type EraRewards struct {
	Payout      *math.HexOrDecimal256 `json:"payout"`
	TotalPoints uint64                `json:"totalPoints"`
	Individual  []Points              `json:"individual"`
}

type Slash struct {
	Validator npos.Address          `json:"validator"`
	SlashEra  uint32                `json:"slashEra"`
	Own       *math.HexOrDecimal256 `json:"own"`
	Others    []Individual          `json:"others"`
	Reporters []npos.Address        `json:"reporters"`
	Payout    *math.HexOrDecimal256 `json:"payout"`
	Status    string                `json:"status"`
}

// PayoutRequest claims one exposure page of a validator.
type PayoutRequest struct {
	Caller npos.Address `json:"caller"`
	Stash  npos.Address `json:"stash"`
	Era    uint32       `json:"era"`
	Page   uint32       `json:"page"`
}

type Offence struct {
	Offender  npos.Address   `json:"offender"`
	Reporters []npos.Address `json:"reporters"`
	// Fraction in parts per billion.
	Fraction uint32 `json:"fraction"`
}

// OffenceReport reports offences committed in a session.
type OffenceReport struct {
	Session  uint32    `json:"session"`
	Offences []Offence `json:"offences"`
}

type Event struct {
	Kind      string                `json:"kind"`
	Era       uint32                `json:"era"`
	Stash     *npos.Address         `json:"stash,omitempty"`
	Other     *npos.Address         `json:"other,omitempty"`
	Amount    *math.HexOrDecimal256 `json:"amount,omitempty"`
	Remainder *math.HexOrDecimal256 `json:"remainder,omitempty"`
	Page      uint32                `json:"page"`
	Count     uint32                `json:"count"`
	Mode      string                `json:"mode,omitempty"`
}

func amount(v *big.Int) *math.HexOrDecimal256 {
	if v == nil {
		return nil
	}
	return (*math.HexOrDecimal256)(new(big.Int).Set(v))
}

func optAddress(a npos.Address) *npos.Address {
	if a.IsZero() {
		return nil
	}
	return &a
}

func individuals(list []exposure.Individual) []Individual {
	out := make([]Individual, 0, len(list))
	for _, ind := range list {
		out = append(out, Individual{Who: ind.Who, Value: amount(ind.Value)})
	}
	return out
}

func convertLedger(ledger *bonding.Ledger, controller npos.Address, payee *bonding.RewardDestination) *Ledger {
	l := &Ledger{
		Stash:      ledger.Stash,
		Controller: controller,
		Total:      amount(ledger.Total),
		Active:     amount(ledger.Active),
		Unlocking:  make([]UnlockChunk, 0, len(ledger.Unlocking)),
	}
	for _, c := range ledger.Unlocking {
		l.Unlocking = append(l.Unlocking, UnlockChunk{Value: amount(c.Value), Era: uint32(c.Era)})
	}
	if payee != nil {
		l.Payee = payee.Kind.String()
		if payee.Kind == bonding.Account {
			l.PayeeTo = optAddress(payee.Account)
		}
	}
	return l
}

func convertElection(status *eras.ElectionStatus) *ElectionStatus {
	if status == nil {
		return nil
	}
	return &ElectionStatus{
		TargetEra:    uint32(status.TargetEra),
		StartSession: uint32(status.StartSession),
		RequestedAt:  uint32(status.RequestedAt),
		Polls:        status.Polls,
	}
}

func convertSlash(s *slashing.UnappliedSlash) *Slash {
	return &Slash{
		Validator: s.Validator,
		SlashEra:  uint32(s.SlashEra),
		Own:       amount(s.Own),
		Others:    individuals(s.Others),
		Reporters: s.Reporters,
		Payout:    amount(s.Payout),
		Status:    s.Status.String(),
	}
}

// ConvertEvent converts an engine event for the api.
func ConvertEvent(ev *staking.Event) *Event {
	return &Event{
		Kind:      string(ev.Kind),
		Era:       uint32(ev.Era),
		Stash:     optAddress(ev.Stash),
		Other:     optAddress(ev.Other),
		Amount:    amount(ev.Amount),
		Remainder: amount(ev.Remainder),
		Page:      uint32(ev.Page),
		Count:     ev.Count,
		Mode:      ev.Mode,
	}
}
