// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb stores the staking events of committed sessions in sqlite.
package eventdb

import (
	"context"
	"database/sql"
	"math/big"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
)

var logger = log.WithContext("pkg", "eventdb")

const selectColumns = "SELECT session, eventIndex, kind, era, stash, other, amount, remainder, page, count, mode FROM event"

// EventDB manages the staking event log.
type EventDB struct {
	path          string
	db            *sql.DB
	stmts         *statements
	driverVersion string
}

// New creates or opens the event db at path.
func New(path string) (edb *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if edb == nil {
			db.Close()
		}
	}()
	if path == ":memory:" {
		// every connection would see its own memory database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}
	driverVer, _, _ := sqlite3.Version()
	logger.Debug("event db opened", "path", path, "sqlite", driverVer)
	return &EventDB{
		path:          path,
		db:            db,
		stmts:         newStatements(db),
		driverVersion: driverVer,
	}, nil
}

// NewMem creates an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

func (db *EventDB) Path() string {
	return db.path
}

func (db *EventDB) Close() error {
	if err := db.stmts.close(); err != nil {
		logger.Warn("failed to close statements", "err", err)
	}
	return db.db.Close()
}

// Insert stores the events committed at the end of session, replacing any stored for it before.
func (db *EventDB) Insert(session npos.SessionIndex, events []*staking.Event) error {
	ctx := context.Background()
	del, err := db.stmts.get(ctx, deleteSessionQuery)
	if err != nil {
		return err
	}
	ins, err := db.stmts.get(ctx, insertEventQuery)
	if err != nil {
		return err
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.StmtContext(ctx, del).Exec(uint64(session)); err != nil {
		_ = tx.Rollback()
		return err
	}
	ins = tx.StmtContext(ctx, ins)
	for i, ev := range events {
		if _, err := ins.Exec(
			uint64(session),
			i,
			string(ev.Kind),
			uint64(ev.Era),
			addressValue(ev.Stash),
			addressValue(ev.Other),
			amountValue(ev.Amount),
			amountValue(ev.Remainder),
			uint64(ev.Page),
			ev.Count,
			ev.Mode,
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert event %d of session %d", i, session)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metricInserted().Add(int64(len(events)))
	return nil
}

// Filter returns the stored events matching filter, in session order.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*Record, error) {
	if filter == nil {
		return db.query(ctx, selectColumns+" ORDER BY session ASC, eventIndex ASC")
	}
	metricsHandleFilter(filter)

	var args []any
	stmt := selectColumns + " WHERE 1"
	if filter.Range != nil {
		column := "session"
		if filter.Range.Unit == Era {
			column = "era"
		}
		args = append(args, filter.Range.From)
		stmt += " AND " + column + " >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND " + column + " <= ?"
		}
	}
	if filter.Stash != nil {
		args = append(args, filter.Stash.Bytes())
		stmt += " AND stash = ?"
	}
	if len(filter.Kinds) > 0 {
		stmt += " AND kind IN (?" + strings.Repeat(", ?", len(filter.Kinds)-1) + ")"
		for _, k := range filter.Kinds {
			args = append(args, string(k))
		}
	}

	if filter.Order == DESC {
		stmt += " ORDER BY session DESC, eventIndex DESC"
	} else {
		stmt += " ORDER BY session ASC, eventIndex ASC"
	}
	if filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(ctx, stmt, args...)
}

// LastSession returns the newest session with stored events.
func (db *EventDB) LastSession(ctx context.Context) (npos.SessionIndex, bool, error) {
	stmt, err := db.stmts.get(ctx, lastSessionQuery)
	if err != nil {
		return 0, false, err
	}
	var last sql.NullInt64
	if err := stmt.QueryRowContext(ctx).Scan(&last); err != nil {
		return 0, false, err
	}
	if !last.Valid {
		return 0, false, nil
	}
	return npos.SessionIndex(last.Int64), true, nil
}

func (db *EventDB) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	stmt, err := db.stmts.get(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			session   uint64
			index     uint32
			kind      string
			era       uint64
			stash     []byte
			other     []byte
			amount    sql.NullString
			remainder sql.NullString
			page      uint64
			count     uint32
			mode      string
		)
		if err := rows.Scan(&session, &index, &kind, &era, &stash, &other, &amount, &remainder, &page, &count, &mode); err != nil {
			return nil, err
		}
		rec := &Record{
			Session: npos.SessionIndex(session),
			Index:   index,
			Event: staking.Event{
				Kind:  staking.EventKind(kind),
				Era:   npos.EraIndex(era),
				Page:  npos.PageIndex(page),
				Count: count,
				Mode:  mode,
			},
		}
		if len(stash) > 0 {
			rec.Stash = npos.BytesToAddress(stash)
		}
		if len(other) > 0 {
			rec.Other = npos.BytesToAddress(other)
		}
		if rec.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if rec.Remainder, err = parseAmount(remainder); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func addressValue(addr npos.Address) []byte {
	if addr.IsZero() {
		return nil
	}
	return addr.Bytes()
}

func amountValue(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func parseAmount(s sql.NullString) (*big.Int, error) {
	if !s.Valid {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s.String, 10)
	if !ok {
		return nil, errors.Errorf("malformed amount %q", s.String)
	}
	return v, nil
}
