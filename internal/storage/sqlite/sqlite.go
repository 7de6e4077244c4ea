// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements storage.Store using SQLite.
//
// The pool is limited to a single connection, so every transaction in the
// process is serialized. The version column still guards against other
// processes writing to the same file.
type SQLiteStore struct {
	db         *sql.DB
	maxRetries int
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithMaxRetries sets the read-modify-write retry budget for UpdateGroup.
func WithMaxRetries(n int) Option {
	return func(s *SQLiteStore) { s.maxRetries = n }
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, maxRetries: storage.DefaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a new group and its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	group.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, description, owner_id, is_active, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.Description, group.OwnerID, group.IsActive,
		group.Version, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := upsertMembers(ctx, tx, group.ID, group.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID with its full history.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, s.db, groupID)
}

// ListGroupsForMember returns active groups where userID is an active member.
func (s *SQLiteStore) ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.listGroups(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? AND m.is_active = 1 AND g.is_active = 1
		 ORDER BY g.created_at DESC, g.id`,
		userID,
	)
}

// ListActiveGroups returns every active group.
func (s *SQLiteStore) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	return s.listGroups(ctx, `SELECT id FROM groups WHERE is_active = 1 ORDER BY created_at, id`)
}

func (s *SQLiteStore) listGroups(ctx context.Context, query string, args ...any) ([]*models.Group, error) {
	// IDs are collected first: with a single connection the rows must be
	// closed before the groups can be loaded.
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		g, err := loadGroup(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// UpdateGroup runs fn against the current state of the group inside a
// transaction and commits only if the stored version is unchanged.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, groupID string, fn storage.Mutation) (*models.Group, error) {
	var updated *models.Group
	err := storage.Retry(ctx, s.maxRetries, func() error {
		g, err := s.updateGroupOnce(ctx, groupID, fn)
		if err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) updateGroupOnce(ctx context.Context, groupID string, fn storage.Mutation) (*models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := loadGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	entries, err := fn(working)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, is_active = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		working.Name, working.Description, working.IsActive, now, groupID, current.Version,
	)
	if isBusySnapshot(err) {
		// Another connection committed after this transaction's read.
		return nil, storage.ErrStaleWrite
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, storage.ErrStaleWrite
	}

	if err := upsertMembers(ctx, tx, groupID, working.Members); err != nil {
		return nil, err
	}

	// Bills and settlements are append-only: only the tail added by fn is new.
	for i := len(current.Bills); i < len(working.Bills); i++ {
		if err := insertBill(ctx, tx, groupID, i, &working.Bills[i]); err != nil {
			return nil, err
		}
	}
	for i := len(current.Settlements); i < len(working.Settlements); i++ {
		if err := insertSettlement(ctx, tx, groupID, i, &working.Settlements[i]); err != nil {
			return nil, err
		}
	}

	for i := range entries {
		if err := insertLedgerEntry(ctx, tx, &entries[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	working.Version = current.Version + 1
	working.UpdatedAt = now
	return working, nil
}

func isBusySnapshot(err error) bool {
	var se *sqlitedrv.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_BUSY_SNAPSHOT
}

func upsertMembers(ctx context.Context, q querier, groupID string, members []models.Member) error {
	for i, m := range members {
		_, err := q.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, position, joined_at, balance, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (group_id, user_id) DO UPDATE SET balance = excluded.balance, is_active = excluded.is_active`,
			groupID, m.UserID, i, m.JoinedAt, m.Balance.String(), m.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert member: %w", err)
		}
	}
	return nil
}

// loadGroup reads a group row and all its children.
func loadGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	g := &models.Group{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, is_active, version, created_at, updated_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.IsActive, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if g.Members, err = loadMembers(ctx, q, groupID); err != nil {
		return nil, err
	}
	if g.Bills, err = loadBills(ctx, q, groupID); err != nil {
		return nil, err
	}
	if g.Settlements, err = loadSettlements(ctx, q, groupID); err != nil {
		return nil, err
	}
	return g, nil
}

func loadMembers(ctx context.Context, q querier, groupID string) ([]models.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id, joined_at, balance, is_active FROM group_members
		 WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.JoinedAt, &m.Balance, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}
