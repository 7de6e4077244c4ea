// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/groupledger/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailExists   = errors.New("email already registered")

	// ErrConflict is returned when a group kept changing underneath a
	// read-modify-write cycle and the retry budget ran out.
	ErrConflict = errors.New("group was modified concurrently")
)

// DefaultMaxRetries bounds optimistic read-modify-write attempts.
const DefaultMaxRetries = 5

// Mutation is applied to a freshly loaded group inside UpdateGroup.
// It may modify the group in place and return ledger entries to be persisted
// in the same transaction. Returning an error aborts the update.
type Mutation func(g *models.Group) ([]models.LedgerEntry, error)

// LedgerFilter narrows ListLedgerEntries. Zero fields do not constrain.
type LedgerFilter struct {
	Type models.EntryType
	// From and To bound CreatedAt in Unix seconds: From inclusive, To exclusive.
	From   int64
	To     int64
	Limit  int
	Offset int
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer.
type Store interface {
	// CreateGroup persists a new group. ID, timestamps and Version are set by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with all members, bills and settlements.
	// Returns ErrGroupNotFound if it does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForMember returns active groups in which userID is an active
	// member, newest first.
	ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error)

	// ListActiveGroups returns every active group.
	ListActiveGroups(ctx context.Context) ([]*models.Group, error)

	// UpdateGroup runs a serialized read-modify-write on one group.
	// The write only commits if the group is unchanged since it was read;
	// otherwise the cycle is retried, and ErrConflict is returned once the
	// retry budget is spent. Errors returned by fn are passed through
	// unchanged and nothing is written.
	UpdateGroup(ctx context.Context, groupID string, fn Mutation) (*models.Group, error)

	// CreateLedgerEntry persists a single ledger entry.
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error

	// ListLedgerEntries returns a user's entries matching filter, newest first.
	// Limit <= 0 means no limit.
	ListLedgerEntries(ctx context.Context, userID string, filter LedgerFilter) ([]*models.LedgerEntry, error)

	// SummarizeLedger totals all of a user's credits and debits.
	SummarizeLedger(ctx context.Context, userID string) (*models.LedgerSummary, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
