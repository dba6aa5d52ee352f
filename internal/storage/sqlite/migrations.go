package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// The counters row is seeded here so lesson id assignment is a plain UPDATE.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

INSERT OR IGNORE INTO counters (name, value) VALUES ('lesson_id', 0);

CREATE TABLE IF NOT EXISTS lessons (
    id INTEGER PRIMARY KEY,
    teacher TEXT NOT NULL,
    student TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    duration INTEGER NOT NULL,
    price INTEGER NOT NULL CHECK (price >= 0),
    status TEXT NOT NULL,
    payment_status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    teacher TEXT PRIMARY KEY,
    amount INTEGER NOT NULL CHECK (amount >= 0)
);

CREATE TABLE IF NOT EXISTS party_lessons (
    identity TEXT NOT NULL,
    role TEXT NOT NULL,
    lesson_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (identity, role, lesson_id),
    FOREIGN KEY (lesson_id) REFERENCES lessons(id)
);

CREATE INDEX IF NOT EXISTS idx_party_lessons_identity ON party_lessons(identity, role);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
