// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

// create a table for staking events
const eventTableSchema = `
create table if not exists event (
	session integer,
	eventIndex integer,
	kind text,
	era integer,
	stash blob(20),
	other blob(20),
	amount text,
	remainder text,
	page integer,
	count integer,
	mode text,
	primary key (session, eventIndex)
);

CREATE INDEX if not exists eraIndex on event(era);
CREATE INDEX if not exists kindIndex on event(kind);
CREATE INDEX if not exists stashIndex on event(stash);
`
