package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "tradein/internal/log"
)

// OpenDB opens the SQLite database and applies the schema. The pool is capped
// at one connection: transactions are serialized and an in-memory DSN always
// sees the same database.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func withPragmas(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Store groups the repositories that take part in a unit of work. The
// repositories of a Store handed out by InTx are bound to the transaction.
type Store struct {
	DB        *sqlx.DB
	Catalog   *CatalogRepo
	Quotes    *QuoteRepo
	Orders    *OrderRepo
	Sequences *SequenceRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:        db,
		Catalog:   NewCatalogRepo(db),
		Quotes:    NewQuoteRepo(db),
		Orders:    NewOrderRepo(db),
		Sequences: NewSequenceRepo(db),
	}
}

// InTx runs fn inside a transaction; fn must only use the Store it is given.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	scoped := &Store{
		DB:        s.DB,
		Catalog:   NewCatalogRepo(tx),
		Quotes:    NewQuoteRepo(tx),
		Orders:    NewOrderRepo(tx),
		Sequences: NewSequenceRepo(tx),
	}
	if err := fn(scoped); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Sequences (quote/order numbering, catalog version)
CREATE TABLE IF NOT EXISTS sequences(
  name  TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);

-- Catalog
CREATE TABLE IF NOT EXISTS device_models(
  id TEXT PRIMARY KEY,
  brand TEXT NOT NULL,
  model_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  image_url TEXT NOT NULL DEFAULT '',
  year INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_device_models_brand ON device_models(LOWER(brand));

CREATE TABLE IF NOT EXISTS device_variants(
  id TEXT PRIMARY KEY,
  model_id TEXT NOT NULL REFERENCES device_models(id) ON DELETE RESTRICT,
  storage TEXT NOT NULL,
  color TEXT NOT NULL DEFAULT '',
  lock_state TEXT NOT NULL CHECK (lock_state IN ('locked','unlocked')),
  created_at TEXT NOT NULL,
  UNIQUE(model_id, storage, color, lock_state)
);

CREATE TABLE IF NOT EXISTS condition_prices(
  variant_id TEXT NOT NULL REFERENCES device_variants(id) ON DELETE RESTRICT,
  condition TEXT NOT NULL CHECK (condition IN ('flawless','good','fair','broken')),
  price TEXT NOT NULL,
  version INTEGER NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (variant_id, condition)
);

CREATE TABLE IF NOT EXISTS price_history(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  variant_id TEXT NOT NULL REFERENCES device_variants(id) ON DELETE RESTRICT,
  condition TEXT NOT NULL,
  price TEXT NOT NULL,
  version INTEGER NOT NULL,
  recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_variant ON price_history(variant_id, condition);

-- Quotes
CREATE TABLE IF NOT EXISTS quotes(
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  owner_kind TEXT NOT NULL CHECK (owner_kind IN ('guest','user')),
  owner_user_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('pending','accepted','declined','expired')),
  currency TEXT NOT NULL,
  catalog_version INTEGER NOT NULL DEFAULT 0,
  total_offer TEXT NOT NULL,
  created_at TEXT NOT NULL,
  expires_at TEXT NOT NULL,
  decided_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_quotes_owner ON quotes(owner_user_id);

CREATE TABLE IF NOT EXISTS quote_items(
  quote_id TEXT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
  line INTEGER NOT NULL,
  variant_id TEXT NOT NULL REFERENCES device_variants(id) ON DELETE RESTRICT,
  condition TEXT NOT NULL,
  offer_amount TEXT NOT NULL,
  PRIMARY KEY (quote_id, line)
);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  quote_id TEXT NOT NULL UNIQUE REFERENCES quotes(id) ON DELETE RESTRICT,
  owner_kind TEXT NOT NULL CHECK (owner_kind IN ('guest','user')),
  owner_user_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  payout_status TEXT NOT NULL CHECK (payout_status IN ('unpaid','processing','paid','failed')),
  currency TEXT NOT NULL,
  total_original TEXT NOT NULL,
  total_final TEXT,
  cancel_reason TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  shipped_at TEXT NOT NULL DEFAULT '',
  received_at TEXT NOT NULL DEFAULT '',
  inspected_at TEXT NOT NULL DEFAULT '',
  finalized_at TEXT NOT NULL DEFAULT '',
  paid_at TEXT NOT NULL DEFAULT '',
  closed_at TEXT NOT NULL DEFAULT '',
  cancelled_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_orders_owner ON orders(owner_user_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  line INTEGER NOT NULL,
  variant_id TEXT NOT NULL REFERENCES device_variants(id) ON DELETE RESTRICT,
  declared_condition TEXT NOT NULL,
  original_offer TEXT NOT NULL,
  inspected_profile TEXT,
  final_offer TEXT,
  price_overridden INTEGER NOT NULL DEFAULT 0,
  inspected_at TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (order_id, line)
);

CREATE TABLE IF NOT EXISTS order_events(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  from_state TEXT NOT NULL DEFAULT '',
  to_state TEXT NOT NULL DEFAULT '',
  detail TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('CUSTOMER','STAFF')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

// SeedUsers ensures two customers and one staff account exist (idempotent;
// safe to run every start).
func SeedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.L().Info("seed.users")

	users := []u{
		mk("u-alice", "alice@tradein.test", "Alice", "CUSTOMER", "Passw0rd!"),
		mk("u-bob", "bob@tradein.test", "Bob", "CUSTOMER", "Passw0rd!"),
		mk("u-staff", "staff@tradein.test", "Staff", "STAFF", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// timeLayout is fixed width so that text order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
