// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package exposure

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/cache"
	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/voters"
	"github.com/vechain/npos/storage"
)

var (
	slotOverviews  = storage.Slot("exposure-overviews")
	slotPages      = storage.Slot("exposure-pages")
	slotPrefs      = storage.Slot("exposure-prefs")
	slotValidators = storage.Slot("exposure-validators")
	slotTotals     = storage.Slot("exposure-totals")

	logger = log.WithContext("pkg", "exposure")
)

const pageCacheSize = 1024

// Store keeps one paginated exposure per elected validator per era.
// Stored pages never change until the era is cleared, so reads are cached.
type Store struct {
	overviews  *storage.Mapping[npos.Bytes32, *Overview]
	pages      *storage.Mapping[npos.Bytes32, *Page]
	prefs      *storage.Mapping[npos.Bytes32, *voters.ValidatorPrefs]
	validators *storage.Mapping[npos.EraIndex, []npos.Address]
	totals     *storage.Mapping[npos.EraIndex, *big.Int]
	pageCache  *cache.LRU[npos.Bytes32, *Page]
	pageSize   uint32
}

func New(sctx *storage.Context, pageSize uint32) *Store {
	pageCache, err := cache.NewLRU[npos.Bytes32, *Page](pageCacheSize)
	if err != nil {
		panic(err)
	}
	return &Store{
		overviews:  storage.NewMapping[npos.Bytes32, *Overview](sctx, slotOverviews),
		pages:      storage.NewMapping[npos.Bytes32, *Page](sctx, slotPages),
		prefs:      storage.NewMapping[npos.Bytes32, *voters.ValidatorPrefs](sctx, slotPrefs),
		validators: storage.NewMapping[npos.EraIndex, []npos.Address](sctx, slotValidators),
		totals:     storage.NewMapping[npos.EraIndex, *big.Int](sctx, slotTotals),
		pageCache:  pageCache,
		pageSize:   pageSize,
	}
}

// Put stores the exposure and prefs of stash for era, replacing nothing: a validator is stored once per era.
func (s *Store) Put(era npos.EraIndex, stash npos.Address, exp *Exposure, prefs voters.ValidatorPrefs) error {
	key := npos.EraStashKey(era, stash)
	if has, err := s.overviews.Has(key); err != nil {
		return err
	} else if has {
		return errors.Errorf("exposure of %v already stored for era %d", stash, era)
	}

	overview, pages := exp.Split(s.pageSize)
	if err := s.overviews.Set(key, overview); err != nil {
		return errors.Wrap(err, "failed to set exposure overview")
	}
	for i, page := range pages {
		if err := s.pages.Set(npos.EraStashPageKey(era, stash, npos.PageIndex(i)), page); err != nil {
			return errors.Wrap(err, "failed to set exposure page")
		}
	}
	if err := s.prefs.Set(key, &prefs); err != nil {
		return err
	}

	list, err := s.validators.Get(era)
	if err != nil {
		return err
	}
	if err := s.validators.Set(era, append(list, stash)); err != nil {
		return err
	}
	total, err := s.TotalStake(era)
	if err != nil {
		return err
	}
	logger.Debug("exposure stored", "era", era, "stash", stash, "total", overview.Total, "pages", overview.PageCount)
	return s.totals.Set(era, total.Add(total, overview.Total))
}

// Overview returns the exposure summary of stash in era, or nil if it was not elected.
func (s *Store) Overview(era npos.EraIndex, stash npos.Address) (*Overview, error) {
	overview, err := s.overviews.Get(npos.EraStashKey(era, stash))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get exposure overview")
	}
	return overview, nil
}

// PageCount returns the number of pages of stash in era, zero if it was not elected.
func (s *Store) PageCount(era npos.EraIndex, stash npos.Address) (uint32, error) {
	overview, err := s.Overview(era, stash)
	if err != nil || overview == nil {
		return 0, err
	}
	return overview.PageCount, nil
}

// Page returns one page of backers. Out of range pages fail with ErrPageNotFound.
func (s *Store) Page(era npos.EraIndex, stash npos.Address, page npos.PageIndex) (*Page, error) {
	count, err := s.PageCount(era, stash)
	if err != nil {
		return nil, err
	}
	if uint32(page) >= count {
		return nil, reverts.ErrPageNotFound
	}
	return s.pageCache.GetOrLoad(npos.EraStashPageKey(era, stash, page), func(key npos.Bytes32) (*Page, error) {
		p, err := s.pages.Get(key)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get exposure page")
		}
		if p == nil {
			return nil, errors.Errorf("exposure page %d of %v missing in era %d", page, stash, era)
		}
		return p, nil
	})
}

// Exposure reconstructs the full exposure of stash in era, or nil.
func (s *Store) Exposure(era npos.EraIndex, stash npos.Address) (*Exposure, error) {
	overview, err := s.Overview(era, stash)
	if err != nil || overview == nil {
		return nil, err
	}
	pages := make([]*Page, 0, overview.PageCount)
	for i := uint32(0); i < overview.PageCount; i++ {
		p, err := s.Page(era, stash, npos.PageIndex(i))
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return Merge(overview, pages), nil
}

// Prefs returns the validator prefs of stash as they were when era was planned.
func (s *Store) Prefs(era npos.EraIndex, stash npos.Address) (*voters.ValidatorPrefs, error) {
	return s.prefs.Get(npos.EraStashKey(era, stash))
}

// Validators returns the elected validators of era in election order.
func (s *Store) Validators(era npos.EraIndex) ([]npos.Address, error) {
	return s.validators.Get(era)
}

// TotalStake returns the sum of all exposures in era.
func (s *Store) TotalStake(era npos.EraIndex) (*big.Int, error) {
	total, err := s.totals.Get(era)
	if err != nil {
		return nil, err
	}
	if total == nil {
		total = new(big.Int)
	}
	return total, nil
}

// Copy duplicates every exposure of from into to.
func (s *Store) Copy(from, to npos.EraIndex) error {
	list, err := s.Validators(from)
	if err != nil {
		return err
	}
	for _, stash := range list {
		exp, err := s.Exposure(from, stash)
		if err != nil {
			return err
		}
		prefs, err := s.Prefs(from, stash)
		if err != nil {
			return err
		}
		if prefs == nil {
			prefs = &voters.ValidatorPrefs{}
		}
		if err := s.Put(to, stash, exp, *prefs); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every exposure of era.
func (s *Store) Clear(era npos.EraIndex) error {
	list, err := s.Validators(era)
	if err != nil {
		return err
	}
	for _, stash := range list {
		key := npos.EraStashKey(era, stash)
		count, err := s.PageCount(era, stash)
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			pageKey := npos.EraStashPageKey(era, stash, npos.PageIndex(i))
			s.pages.Delete(pageKey)
			s.pageCache.Remove(pageKey)
		}
		s.overviews.Delete(key)
		s.prefs.Delete(key)
	}
	s.validators.Delete(era)
	s.totals.Delete(era)
	if len(list) > 0 {
		logger.Debug("exposures cleared", "era", era, "validators", len(list))
	}
	return nil
}

// PurgeCache drops cached pages, needed when uncommitted writes are reverted.
func (s *Store) PurgeCache() {
	s.pageCache.Purge()
}

// CacheStats returns the page cache hits and misses.
func (s *Store) CacheStats() (hit, miss int64) {
	return s.pageCache.Stats()
}
