package sqlitestore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS positions (
	book_id TEXT NOT NULL,
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (book_id, security_id, business_date)
);
CREATE INDEX IF NOT EXISTS idx_positions_security ON positions(security_id, business_date);

CREATE TABLE IF NOT EXISTS inventory (
	security_id TEXT NOT NULL,
	counterparty_id TEXT NOT NULL DEFAULT '',
	au_id TEXT NOT NULL DEFAULT '',
	calc_type TEXT NOT NULL,
	business_date TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (security_id, counterparty_id, au_id, calc_type, business_date)
);
CREATE INDEX IF NOT EXISTS idx_inventory_security ON inventory(security_id, business_date);

CREATE TABLE IF NOT EXISTS locates (
	request_id TEXT PRIMARY KEY,
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	state TEXT NOT NULL,
	expiry_date TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locates_security ON locates(security_id, business_date);
CREATE INDEX IF NOT EXISTS idx_locates_expiry ON locates(state, expiry_date);

CREATE TABLE IF NOT EXISTS rules (
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	rule_type TEXT NOT NULL,
	market TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (name, version)
);
CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(rule_type, market, status);

CREATE TABLE IF NOT EXISTS client_limits (
	id TEXT NOT NULL,
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (id, security_id, business_date)
);

CREATE TABLE IF NOT EXISTS au_limits (
	id TEXT NOT NULL,
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (id, security_id, business_date)
);

CREATE TABLE IF NOT EXISTS securities (
	internal_id TEXT PRIMARY KEY,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_compositions (
	parent_security_id TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (parent_security_id, effective_date)
);

CREATE TABLE IF NOT EXISTS contracts (
	contract_id TEXT PRIMARY KEY,
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_security ON contracts(security_id, business_date);

CREATE TABLE IF NOT EXISTS external_availability (
	security_id TEXT NOT NULL,
	business_date TEXT NOT NULL,
	source_name TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (security_id, business_date, source_name)
);

CREATE TABLE IF NOT EXISTS dedup (
	event_id TEXT PRIMARY KEY,
	seen_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dedup_seen_at ON dedup(seen_at);

CREATE TABLE IF NOT EXISTS outbox (
	sequence_id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	published_at TEXT,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(published_at);
`
