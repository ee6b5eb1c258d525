package ledger

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date DATETIME NOT NULL,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity TEXT NOT NULL,
	unit_price TEXT NOT NULL,
	fees TEXT NOT NULL,
	tax_paid TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	batch_id TEXT NOT NULL,
	run_mode TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_date ON ledger_entries(date, id);
CREATE INDEX IF NOT EXISTS idx_entries_symbol ON ledger_entries(symbol);
CREATE INDEX IF NOT EXISTS idx_entries_batch ON ledger_entries(batch_id);
`
