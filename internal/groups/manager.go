// Package groups implements the group operations: membership, bills,
// settlements and balance queries, each acting on behalf of a calling user.
package groups

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/lock"
	"github.com/mmynk/groupledger/internal/metrics"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// BalanceCache memoizes balance views. *cache.BalanceCache satisfies it.
type BalanceCache interface {
	Get(ctx context.Context, groupID string, dst any) (bool, error)
	Set(ctx context.Context, groupID string, view any) error
	Invalidate(ctx context.Context, groupID string) error
}

// BalanceView is the result of GetBalance.
type BalanceView struct {
	GroupID              string                     `json:"group_id"`
	Version              int64                      `json:"version"`
	Balances             []calculator.MemberBalance `json:"balances"`
	SuggestedSettlements []calculator.Transfer      `json:"suggested_settlements"`
}

func (v *BalanceView) includes(userID string) bool {
	for _, b := range v.Balances {
		if b.MemberID == userID {
			return true
		}
	}
	return false
}

// Manager coordinates group mutations. Every mutation holds the group's lock
// and commits through the store's version-checked UpdateGroup.
type Manager struct {
	store  storage.Store
	locker lock.Locker
	cache  BalanceCache
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker replaces the default in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithBalanceCache enables balance caching.
func WithBalanceCache(c BalanceCache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager on store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locker: lock.NewKeyedMutex(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateGroup creates an active group owned by ownerID. The owner is always
// the first member; memberIDs are de-duplicated and must be registered users.
func (m *Manager) CreateGroup(ctx context.Context, ownerID, name, description string, memberIDs []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	now := m.now().Unix()
	group := &models.Group{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		IsActive:    true,
		CreatedAt:   now,
	}

	seen := map[string]bool{}
	for _, id := range append([]string{ownerID}, memberIDs...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if id != ownerID {
			if _, err := m.store.GetUserByID(ctx, id); err != nil {
				return nil, fmt.Errorf("member %s: %w", id, err)
			}
		}
		group.Members = append(group.Members, models.Member{
			UserID:   id,
			JoinedAt: now,
			Balance:  decimal.Zero,
			IsActive: true,
		})
	}

	if err := m.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	m.logger.Info("Group created", "group_id", group.ID, "owner_id", ownerID, "members", len(group.Members))
	return group, nil
}

// GetGroup returns an active group the caller belongs or belonged to.
func (m *Manager) GetGroup(ctx context.Context, callerID, groupID string) (*models.Group, error) {
	g, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive || g.Member(callerID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return g, nil
}

// ListGroups returns the caller's active groups, newest first.
func (m *Manager) ListGroups(ctx context.Context, callerID string) ([]*models.Group, error) {
	groups, err := m.store.ListGroupsForMember(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// UpdateGroup renames the group. Owner only.
func (m *Manager) UpdateGroup(ctx context.Context, callerID, groupID, name, description string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	g, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if err := requireOwner(g, callerID); err != nil {
			return nil, err
		}
		g.Name = name
		g.Description = description
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Group updated", "group_id", groupID)
	return g, nil
}

// DeleteGroup soft-deletes the group. Owner only.
func (m *Manager) DeleteGroup(ctx context.Context, callerID, groupID string) error {
	_, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if err := requireOwner(g, callerID); err != nil {
			return nil, err
		}
		g.IsActive = false
		return nil, nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Group deleted", "group_id", groupID)
	return nil
}

// AddMember adds a registered user to the group, or reactivates a former
// member with the balance they left with. Owner only.
func (m *Manager) AddMember(ctx context.Context, callerID, groupID, memberID string) (*models.Group, error) {
	if _, err := m.store.GetUserByID(ctx, memberID); err != nil {
		return nil, fmt.Errorf("member %s: %w", memberID, err)
	}

	now := m.now().Unix()
	g, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if err := requireOwner(g, callerID); err != nil {
			return nil, err
		}
		if existing := g.Member(memberID); existing != nil {
			if existing.IsActive {
				return nil, ErrMemberAlreadyExists
			}
			existing.IsActive = true
			return nil, nil
		}
		g.Members = append(g.Members, models.Member{
			UserID:   memberID,
			JoinedAt: now,
			Balance:  decimal.Zero,
			IsActive: true,
		})
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Member added", "group_id", groupID, "member_id", memberID)
	return g, nil
}

// RemoveMember deactivates a member whose balance is exactly zero. Owner only.
func (m *Manager) RemoveMember(ctx context.Context, callerID, groupID, memberID string) (*models.Group, error) {
	g, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if err := requireOwner(g, callerID); err != nil {
			return nil, err
		}
		member := g.ActiveMember(memberID)
		if member == nil {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
		}
		if memberID == g.OwnerID {
			return nil, ErrOwnerCannotLeave
		}
		if !member.Balance.IsZero() {
			return nil, fmt.Errorf("%w: %s", ErrMemberHasOutstandingBalance, member.Balance.StringFixed(2))
		}
		member.IsActive = false
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Member removed", "group_id", groupID, "member_id", memberID)
	return g, nil
}

// AddBill records a bill paid by in.PayerID and updates balances.
func (m *Manager) AddBill(ctx context.Context, callerID, groupID string, in calculator.BillInput) (*models.Group, error) {
	now := m.now().Unix()
	var bill *models.Bill
	g, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if g.ActiveMember(callerID) == nil {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
		}
		b, err := calculator.ApplyBill(g, in, now)
		if err != nil {
			return nil, err
		}
		bill = b
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BillsRecorded.Inc()
	m.logger.Info("Bill recorded",
		"group_id", groupID,
		"bill_id", bill.ID,
		"payer_id", bill.PayerID,
		"total", bill.Total.StringFixed(2),
		"splits", len(bill.Splits),
	)
	return g, nil
}

// RecordSettlement records a payment from fromID to toID and writes a debit
// entry to the payer's personal ledger in the same commit.
func (m *Manager) RecordSettlement(ctx context.Context, callerID, groupID, fromID, toID string, amount decimal.Decimal) (*models.Group, error) {
	now := m.now().Unix()
	var settlement *models.Settlement
	g, err := m.mutate(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if g.ActiveMember(callerID) == nil {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
		}
		s, err := calculator.ApplySettlement(g, fromID, toID, amount, now)
		if err != nil {
			return nil, err
		}
		settlement = s
		return []models.LedgerEntry{{
			UserID:      fromID,
			Type:        models.EntryDebit,
			Amount:      s.Amount,
			Description: "Settlement payment to group: " + g.Name,
			Source:      models.SourceGroupBill,
			RelatedID:   g.ID,
			CreatedAt:   now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SettlementsRecorded.Inc()
	m.logger.Info("Settlement recorded",
		"group_id", groupID,
		"settlement_id", settlement.ID,
		"from", fromID,
		"to", toID,
		"amount", settlement.Amount.StringFixed(2),
	)
	return g, nil
}

// GetBalance returns the active members' balances and a suggested set of
// transfers that clears them.
func (m *Manager) GetBalance(ctx context.Context, callerID, groupID string) (*BalanceView, error) {
	if m.cache != nil {
		var cached BalanceView
		ok, err := m.cache.Get(ctx, groupID, &cached)
		if err != nil {
			m.logger.Warn("Balance cache read failed", "group_id", groupID, "error", err)
		}
		if ok && cached.includes(callerID) {
			return &cached, nil
		}
	}

	// The cache is only filled under the group lock, never between a commit
	// and its invalidation.
	unlock, err := m.locker.Lock(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock group: %w", err)
	}
	defer unlock()

	g, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive || g.ActiveMember(callerID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}

	balances := calculator.Balances(g)
	view := &BalanceView{
		GroupID:              g.ID,
		Version:              g.Version,
		Balances:             balances,
		SuggestedSettlements: calculator.SuggestSettlements(balances),
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, groupID, view); err != nil {
			m.logger.Warn("Balance cache write failed", "group_id", groupID, "error", err)
		}
	}
	return view, nil
}

// mutate runs fn on an active group under the group lock and drops any
// cached balances once it commits.
func (m *Manager) mutate(ctx context.Context, groupID string, fn storage.Mutation) (*models.Group, error) {
	unlock, err := m.locker.Lock(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock group: %w", err)
	}
	defer unlock()

	g, err := m.store.UpdateGroup(ctx, groupID, func(g *models.Group) ([]models.LedgerEntry, error) {
		if !g.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
		}
		return fn(g)
	})
	if err != nil {
		return nil, err
	}

	if sum, ok := calculator.CheckConservation(g); !ok {
		m.logger.Error("Group balances do not sum to zero", "group_id", groupID, "sum", sum.String())
	}

	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, groupID); err != nil {
			m.logger.Warn("Balance cache invalidation failed", "group_id", groupID, "error", err)
		}
	}
	return g, nil
}

// requireOwner hides the group from non-members and rejects members who do
// not own it.
func requireOwner(g *models.Group, callerID string) error {
	if g.ActiveMember(callerID) == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, g.ID)
	}
	if !g.IsOwner(callerID) {
		return ErrNotGroupOwner
	}
	return nil
}
