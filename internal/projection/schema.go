package projection

// migration is one ordered, content-hashed step applied to the PS schema
// (SPEC_FULL.md §6.2). Migrations are applied in ascending Version order,
// under the advisory lock in lock.go; the runner in migrate.go records
// blake2b-256(SQL) per version so a silently-edited migration is caught at
// startup instead of applied blindly (scenario S7).
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations lists every schema step, oldest first. Splitting the domain
// tables (§6.2) across two versions mirrors how the teacher's own schema
// grew incrementally (internal/storage.runMigrations adds columns to an
// existing database rather than redefining it); here the unit of growth is
// a whole migration rather than a bare ALTER TABLE, because the content
// hash needs something stable to hash per step.
var migrations = []migration{
	{
		Version: 1,
		Name:    "core ledger mirror",
		SQL: `
CREATE TABLE messages (
	message_index   INTEGER PRIMARY KEY,
	block_index     INTEGER NOT NULL,
	event           TEXT NOT NULL,
	category        TEXT NOT NULL,
	command         TEXT NOT NULL,
	bindings        TEXT NOT NULL,
	tx_hash         TEXT,
	event_hash      TEXT NOT NULL,
	previous_state  TEXT,
	insert_rowid    INTEGER
);
CREATE INDEX idx_messages_block ON messages(block_index);
CREATE INDEX idx_messages_tx_hash ON messages(tx_hash);

CREATE TABLE blocks (
	block_index   INTEGER PRIMARY KEY,
	block_hash    TEXT,
	block_time    INTEGER
);

CREATE TABLE transactions (
	tx_index     INTEGER PRIMARY KEY,
	tx_hash      TEXT NOT NULL,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	destination  TEXT,
	data         TEXT,
	UNIQUE(tx_hash)
);
CREATE INDEX idx_transactions_block ON transactions(block_index);

CREATE TABLE credits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	block_index  INTEGER NOT NULL,
	address      TEXT,
	utxo         TEXT,
	asset        TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	calling_function TEXT,
	event        TEXT,
	tx_index     INTEGER
);
CREATE INDEX idx_credits_address_asset ON credits(address, asset);
CREATE INDEX idx_credits_utxo_asset ON credits(utxo, asset);

CREATE TABLE debits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	block_index  INTEGER NOT NULL,
	address      TEXT,
	utxo         TEXT,
	asset        TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	action       TEXT,
	event        TEXT,
	tx_index     INTEGER
);
CREATE INDEX idx_debits_address_asset ON debits(address, asset);
CREATE INDEX idx_debits_utxo_asset ON debits(utxo, asset);

CREATE TABLE balances (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	address      TEXT,
	utxo         TEXT,
	asset        TEXT NOT NULL,
	quantity     INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX idx_balances_address_asset ON balances(address, asset) WHERE utxo IS NULL OR utxo = '';
CREATE UNIQUE INDEX idx_balances_utxo_asset ON balances(utxo, asset) WHERE utxo IS NOT NULL AND utxo != '';

CREATE TABLE assets (
	asset_id    TEXT PRIMARY KEY,
	asset_name  TEXT NOT NULL UNIQUE,
	block_index INTEGER NOT NULL
);

CREATE TABLE assets_info (
	asset                      TEXT PRIMARY KEY,
	asset_id                   TEXT,
	asset_longname             TEXT,
	issuer                     TEXT,
	owner                      TEXT,
	divisible                  INTEGER NOT NULL DEFAULT 1,
	locked                     INTEGER NOT NULL DEFAULT 0,
	supply                     INTEGER NOT NULL DEFAULT 0,
	description                TEXT,
	first_issuance_block_index INTEGER,
	last_issuance_block_index  INTEGER,
	confirmed                  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_assets_info_longname ON assets_info(asset_longname);

CREATE TABLE issuances (
	tx_hash      TEXT PRIMARY KEY,
	tx_index     INTEGER,
	block_index  INTEGER NOT NULL,
	asset        TEXT NOT NULL,
	asset_longname TEXT,
	quantity     INTEGER NOT NULL DEFAULT 0,
	issuer       TEXT,
	divisible    INTEGER NOT NULL DEFAULT 1,
	locked       INTEGER NOT NULL DEFAULT 0,
	description  TEXT,
	status       TEXT NOT NULL DEFAULT 'valid',
	fee_paid     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_issuances_asset ON issuances(asset, block_index);

CREATE TABLE orders (
	tx_hash        TEXT PRIMARY KEY,
	tx_index       INTEGER,
	block_index    INTEGER NOT NULL,
	source         TEXT,
	give_asset     TEXT,
	give_quantity  INTEGER,
	get_asset      TEXT,
	get_quantity   INTEGER,
	status         TEXT NOT NULL DEFAULT 'open'
);

CREATE TABLE order_matches (
	id           TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	tx0_address  TEXT,
	tx1_address  TEXT,
	status       TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE bets (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	feed_address TEXT,
	status       TEXT NOT NULL DEFAULT 'open'
);

CREATE TABLE bet_matches (
	id           TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	tx0_address  TEXT,
	tx1_address  TEXT,
	status       TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE dispensers (
	tx_hash        TEXT PRIMARY KEY,
	block_index    INTEGER NOT NULL,
	source         TEXT,
	asset          TEXT,
	give_quantity  INTEGER,
	status         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE dispenses (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	block_index  INTEGER NOT NULL,
	tx_hash      TEXT,
	source       TEXT,
	destination  TEXT,
	asset        TEXT,
	dispense_quantity INTEGER
);

CREATE TABLE sweeps (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	destination  TEXT,
	fee_paid     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE broadcasts (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	text         TEXT,
	value        REAL
);

CREATE TABLE burns (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	burned       INTEGER,
	earned       INTEGER
);

CREATE TABLE sends (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	tx_hash      TEXT,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	destination  TEXT,
	asset        TEXT,
	quantity     INTEGER
);

CREATE TABLE dividends (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	asset        TEXT,
	dividend_asset TEXT,
	fee_paid     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE fairminters (
	tx_hash         TEXT PRIMARY KEY,
	block_index     INTEGER NOT NULL,
	source          TEXT,
	asset           TEXT,
	earn_quantity   INTEGER NOT NULL DEFAULT 0,
	commission      INTEGER NOT NULL DEFAULT 0,
	paid_quantity   INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'open'
);

CREATE TABLE fairmints (
	tx_hash        TEXT PRIMARY KEY,
	block_index    INTEGER NOT NULL,
	fairminter_tx_hash TEXT,
	source         TEXT,
	earn_quantity  INTEGER,
	paid_quantity  INTEGER,
	status         TEXT NOT NULL DEFAULT 'valid'
);

CREATE TABLE rps (
	tx_hash      TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	source       TEXT,
	possible_moves INTEGER,
	status       TEXT NOT NULL DEFAULT 'open'
);

CREATE TABLE rps_matches (
	id           TEXT PRIMARY KEY,
	block_index  INTEGER NOT NULL,
	tx0_address  TEXT,
	tx1_address  TEXT,
	status       TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE transaction_count (
	block_index  INTEGER PRIMARY KEY,
	tx_count     INTEGER NOT NULL DEFAULT 0
);
`,
	},
	{
		Version: 2,
		Name:    "projection-only tables",
		SQL: `
CREATE TABLE mempool (
	tx_hash      TEXT PRIMARY KEY,
	tx_index     INTEGER NOT NULL,
	event        TEXT NOT NULL,
	category     TEXT NOT NULL,
	command      TEXT NOT NULL,
	bindings     TEXT NOT NULL,
	addresses    TEXT,
	timestamp    INTEGER
);
CREATE UNIQUE INDEX idx_mempool_tx_index ON mempool(tx_index);

CREATE TABLE all_expirations (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	object_id    TEXT NOT NULL,
	block_index  INTEGER NOT NULL,
	type         TEXT NOT NULL
);
CREATE INDEX idx_expirations_object ON all_expirations(object_id, block_index, type);

CREATE TABLE address_events (
	address       TEXT NOT NULL,
	message_index INTEGER NOT NULL,
	PRIMARY KEY (address, message_index)
);
`,
	},
}
