package sqlite

import "database/sql"

// Schema creates every table the store needs. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	creator      TEXT NOT NULL,
	last_message TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	username  TEXT NOT NULL,
	joined_at INTEGER NOT NULL,
	PRIMARY KEY (group_id, username),
	FOREIGN KEY (group_id) REFERENCES chat_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(username);
CREATE INDEX IF NOT EXISTS idx_groups_updated ON chat_groups(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
`

// ApplySchema runs Schema against db. It is the default setup for New and
// the usual setup function for NewWithSetup in tests.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
