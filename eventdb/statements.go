// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"
)

const (
	deleteSessionQuery = "DELETE FROM event WHERE session = ?"
	insertEventQuery   = "INSERT INTO event(session, eventIndex, kind, era, stash, other, amount, remainder, page, count, mode) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	lastSessionQuery   = "SELECT MAX(session) FROM event"
)

// statements prepares every distinct query once.
// Filters only vary by their clauses and the number of kinds, which keeps the set small.
type statements struct {
	db      *sql.DB
	mu      sync.RWMutex
	byQuery map[string]*sql.Stmt
}

func newStatements(db *sql.DB) *statements {
	return &statements{db: db, byQuery: make(map[string]*sql.Stmt)}
}

// get returns the statement of query, preparing it on first use.
func (s *statements) get(ctx context.Context, query string) (*sql.Stmt, error) {
	s.mu.RLock()
	stmt := s.byQuery[query]
	s.mu.RUnlock()
	if stmt != nil {
		metricStatements().AddWithLabel(1, map[string]string{"result": "hit"})
		return stmt, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt := s.byQuery[query]; stmt != nil {
		metricStatements().AddWithLabel(1, map[string]string{"result": "hit"})
		return stmt, nil
	}
	if s.byQuery == nil {
		return nil, errors.New("event db closed")
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "prepare")
	}
	s.byQuery[query] = stmt
	metricStatements().AddWithLabel(1, map[string]string{"result": "prepared"})
	metricPreparedStatements().Set(int64(len(s.byQuery)))
	return stmt, nil
}

func (s *statements) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byQuery)
}

// close releases every prepared statement. Later calls to get fail.
func (s *statements) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, stmt := range s.byQuery {
		if err := stmt.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.byQuery = nil
	metricPreparedStatements().Set(0)
	return first
}
