// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package currency

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/storage"
)

var (
	logger = log.WithContext("pkg", "currency")

	ErrInsufficientBalance = errors.New("insufficient free balance")
	ErrInsufficientHeld    = errors.New("insufficient held balance")
)

// Currency is the stakeable balance ledger consumed by the staking engine.
type Currency interface {
	FreeBalance(who npos.Address) (*big.Int, error)
	Held(who npos.Address) (*big.Int, error)
	Hold(who npos.Address, amount *big.Int) error
	Release(who npos.Address, amount *big.Int) error
	Transfer(from, to npos.Address, amount *big.Int) error
	// BurnHeld removes up to amount from the held balance and issuance, returning the burned value.
	BurnHeld(who npos.Address, amount *big.Int) (*big.Int, error)
	Mint(who npos.Address, amount *big.Int) error
	TotalIssuance() (*big.Int, error)
	MinimumBalance() *big.Int
}

type account struct {
	Free *big.Int
	Held *big.Int
}

func (a *account) isEmpty() bool {
	return a.Free.Sign() == 0 && a.Held.Sign() == 0
}

// Balances is a Currency kept in engine storage.
type Balances struct {
	accounts       *storage.Mapping[npos.Address, *account]
	issuance       *storage.Uint256
	minimumBalance *big.Int
}

var _ Currency = (*Balances)(nil)

var (
	slotAccounts = storage.Slot("currency-accounts")
	slotIssuance = storage.Slot("currency-issuance")
)

// New creates balances in sctx. minimumBalance is the existential deposit.
func New(sctx *storage.Context, minimumBalance *big.Int) *Balances {
	return &Balances{
		accounts:       storage.NewMapping[npos.Address, *account](sctx, slotAccounts),
		issuance:       storage.NewUint256(sctx, slotIssuance),
		minimumBalance: new(big.Int).Set(minimumBalance),
	}
}

func (b *Balances) get(who npos.Address) (*account, error) {
	acc, err := b.accounts.Get(who)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	if acc == nil {
		return &account{Free: new(big.Int), Held: new(big.Int)}, nil
	}
	return acc, nil
}

func (b *Balances) set(who npos.Address, acc *account) error {
	if acc.isEmpty() {
		b.accounts.Delete(who)
		return nil
	}
	if err := b.accounts.Set(who, acc); err != nil {
		return errors.Wrap(err, "failed to set account")
	}
	return nil
}

func (b *Balances) FreeBalance(who npos.Address) (*big.Int, error) {
	acc, err := b.get(who)
	if err != nil {
		return nil, err
	}
	return acc.Free, nil
}

func (b *Balances) Held(who npos.Address) (*big.Int, error) {
	acc, err := b.get(who)
	if err != nil {
		return nil, err
	}
	return acc.Held, nil
}

// Hold moves amount from free to held.
func (b *Balances) Hold(who npos.Address, amount *big.Int) error {
	acc, err := b.get(who)
	if err != nil {
		return err
	}
	if acc.Free.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Free.Sub(acc.Free, amount)
	acc.Held.Add(acc.Held, amount)
	return b.set(who, acc)
}

// Release moves amount from held back to free.
func (b *Balances) Release(who npos.Address, amount *big.Int) error {
	acc, err := b.get(who)
	if err != nil {
		return err
	}
	if acc.Held.Cmp(amount) < 0 {
		return ErrInsufficientHeld
	}
	acc.Held.Sub(acc.Held, amount)
	acc.Free.Add(acc.Free, amount)
	return b.set(who, acc)
}

func (b *Balances) Transfer(from, to npos.Address, amount *big.Int) error {
	src, err := b.get(from)
	if err != nil {
		return err
	}
	if src.Free.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Free.Sub(src.Free, amount)
	if err := b.set(from, src); err != nil {
		return err
	}
	dst, err := b.get(to)
	if err != nil {
		return err
	}
	dst.Free.Add(dst.Free, amount)
	return b.set(to, dst)
}

func (b *Balances) BurnHeld(who npos.Address, amount *big.Int) (*big.Int, error) {
	acc, err := b.get(who)
	if err != nil {
		return nil, err
	}
	burned := new(big.Int).Set(amount)
	if acc.Held.Cmp(burned) < 0 {
		logger.Warn("burn exceeds held balance", "who", who, "held", acc.Held, "amount", amount)
		burned.Set(acc.Held)
	}
	acc.Held.Sub(acc.Held, burned)
	if err := b.set(who, acc); err != nil {
		return nil, err
	}
	if err := b.issuance.Sub(burned); err != nil {
		return nil, err
	}
	return burned, nil
}

func (b *Balances) Mint(who npos.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := b.get(who)
	if err != nil {
		return err
	}
	acc.Free.Add(acc.Free, amount)
	if err := b.set(who, acc); err != nil {
		return err
	}
	return b.issuance.Add(amount)
}

func (b *Balances) TotalIssuance() (*big.Int, error) {
	return b.issuance.Get()
}

func (b *Balances) MinimumBalance() *big.Int {
	return new(big.Int).Set(b.minimumBalance)
}
