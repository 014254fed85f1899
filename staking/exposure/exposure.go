// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package exposure

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/vechain/npos/npos"
)

// Individual is the stake of one backer.
type Individual struct {
	Who   npos.Address
	Value *big.Int
}

// Overview is the summary of a validator's exposure in an era.
type Overview struct {
	Total          *big.Int
	Own            *big.Int
	NominatorCount uint32
	PageCount      uint32
}

// Page is one bounded slice of a validator's backers.
type Page struct {
	PageTotal *big.Int
	Others    []Individual
}

// Exposure is the full backing of a validator in an era.
type Exposure struct {
	Total  *big.Int
	Own    *big.Int
	Others []Individual
}

// Split sorts the backers by value descending, then by address, and cuts them into pages.
func (e *Exposure) Split(pageSize uint32) (*Overview, []*Page) {
	others := make([]Individual, len(e.Others))
	copy(others, e.Others)
	sort.SliceStable(others, func(i, j int) bool {
		if c := others[i].Value.Cmp(others[j].Value); c != 0 {
			return c > 0
		}
		return bytes.Compare(others[i].Who[:], others[j].Who[:]) < 0
	})

	var pages []*Page
	for start := 0; start < len(others) || len(pages) == 0; start += int(pageSize) {
		end := min(start+int(pageSize), len(others))
		page := &Page{PageTotal: new(big.Int)}
		for _, ind := range others[start:end] {
			page.Others = append(page.Others, Individual{Who: ind.Who, Value: new(big.Int).Set(ind.Value)})
			page.PageTotal.Add(page.PageTotal, ind.Value)
		}
		pages = append(pages, page)
	}
	overview := &Overview{
		Total:          new(big.Int).Set(e.Total),
		Own:            new(big.Int).Set(e.Own),
		NominatorCount: uint32(len(others)),
		PageCount:      uint32(len(pages)),
	}
	return overview, pages
}

// Merge reconstructs a full exposure from its overview and pages.
func Merge(overview *Overview, pages []*Page) *Exposure {
	e := &Exposure{
		Total: new(big.Int).Set(overview.Total),
		Own:   new(big.Int).Set(overview.Own),
	}
	for _, p := range pages {
		for _, ind := range p.Others {
			e.Others = append(e.Others, Individual{Who: ind.Who, Value: new(big.Int).Set(ind.Value)})
		}
	}
	return e
}
