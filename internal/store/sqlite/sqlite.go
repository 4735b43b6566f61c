package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/huddle/internal/store"
)

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash, toNanos(s.now())); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var (
		user    store.User
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = fromNanos(created)

	return &user, nil
}

// UserExists reports whether a username is registered.
func (s *SQLiteStore) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return exists, nil
}

// ==== GroupStore implementation ====

// CreateGroup creates a group and its memberships in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g store.NewGroup) (*store.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	id := uuid.NewString()
	now := toNanos(s.now())

	query := `
		INSERT INTO chat_groups (id, name, creator, last_message, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, id, g.Name, g.CreatorID, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrNameTaken
		}
		return nil, fmt.Errorf("insert group: %w", err)
	}

	// Duplicate entries collapse into one membership.
	memberQuery := `
		INSERT OR IGNORE INTO group_members (group_id, username, joined_at)
		VALUES (?, ?, ?)
	`
	for _, member := range g.Members {
		if _, err := tx.ExecContext(ctx, memberQuery, id, member, now); err != nil {
			return nil, fmt.Errorf("insert member %q: %w", member, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetGroup(ctx, id)
}

// GetGroup retrieves a group by ID including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*store.Group, error) {
	query := `
		SELECT id, name, creator, last_message, created_at, updated_at
		FROM chat_groups
		WHERE id = ?
	`
	group, err := scanGroup(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}

	if group.Members, err = s.listMembers(ctx, id); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroupsByMember lists groups containing userID, most recently updated first.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, userID string) ([]*store.Group, error) {
	query := `
		SELECT g.id, g.name, g.creator, g.last_message, g.created_at, g.updated_at
		FROM chat_groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.username = ?
		ORDER BY g.updated_at DESC, g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}

	var groups []*store.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	// Release the single connection before loading members.
	rows.Close()

	for _, group := range groups {
		if group.Members, err = s.listMembers(ctx, group.ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// AddMember adds userID to the group and bumps updated_at.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, userID string) (*store.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := groupExists(ctx, tx, groupID); err != nil {
		return nil, err
	}

	now := toNanos(s.now())
	if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, username, joined_at) VALUES (?, ?, ?)`, groupID, userID, now); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyMember
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_groups SET updated_at = ? WHERE id = ?`, now, groupID); err != nil {
		return nil, fmt.Errorf("touch group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetGroup(ctx, groupID)
}

// RemoveMember removes userID from the group and bumps updated_at.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID string) (*store.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := groupExists(ctx, tx, groupID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ? AND username = ?`, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrNotMember
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_groups SET updated_at = ? WHERE id = ?`, toNanos(s.now()), groupID); err != nil {
		return nil, fmt.Errorf("touch group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetGroup(ctx, groupID)
}

// UpdateGroupSummary sets the last message text and updated_at.
func (s *SQLiteStore) UpdateGroupSummary(ctx context.Context, groupID, text string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE chat_groups SET last_message = ?, updated_at = ? WHERE id = ?`, text, toNanos(at), groupID)
	if err != nil {
		return fmt.Errorf("update group summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group %q: %w", groupID, store.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) listMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM group_members WHERE group_id = ? ORDER BY joined_at, rowid`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make([]string, 0, 2)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, username)
	}
	return members, rows.Err()
}

func groupExists(ctx context.Context, tx *sql.Tx, groupID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM chat_groups WHERE id = ?)`, groupID).Scan(&exists); err != nil {
		return fmt.Errorf("query group exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("group %q: %w", groupID, store.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*store.Group, error) {
	var (
		group            store.Group
		created, updated int64
	)
	if err := row.Scan(&group.ID, &group.Name, &group.CreatorID, &group.LastMessage, &created, &updated); err != nil {
		return nil, err
	}
	group.CreatedAt = fromNanos(created)
	group.UpdatedAt = fromNanos(updated)
	return &group, nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message and returns it with its assigned ID.
// A zero CreatedAt is replaced with the store clock.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	query := `
		INSERT INTO messages (room_id, sender, text, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.SenderID, msg.Text, toNanos(createdAt))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return &store.Message{
		ID:        id,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: fromNanos(toNanos(createdAt)),
	}, nil
}

// ListMessages returns all messages of a room ordered by timestamp ascending.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender, text, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg     store.Message
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Text, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = fromNanos(created)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
