package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestGroup(owner string, others ...string) *models.Group {
	g := &models.Group{Name: "Roommates", OwnerID: owner, IsActive: true}
	for _, id := range append([]string{owner}, others...) {
		g.Members = append(g.Members, models.Member{UserID: id, JoinedAt: 1, Balance: decimal.Zero, IsActive: true})
	}
	return g
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroup generates ID and version", func(t *testing.T) {
		g := newTestGroup("alice", "bob")
		require.NoError(t, store.CreateGroup(ctx, g))

		assert.NotEmpty(t, g.ID)
		assert.NotZero(t, g.CreatedAt)
		assert.Equal(t, int64(1), g.Version)

		got, err := store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Roommates", got.Name)
		assert.Equal(t, "alice", got.OwnerID)
		assert.True(t, got.IsActive)
		require.Len(t, got.Members, 2)
		assert.Equal(t, "alice", got.Members[0].UserID)
		assert.Equal(t, "bob", got.Members[1].UserID)
		assert.True(t, got.Members[1].Balance.IsZero())
	})

	t.Run("GetGroup returns ErrGroupNotFound", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "nonexistent-id")
		require.ErrorIs(t, err, storage.ErrGroupNotFound)
	})

	t.Run("UpdateGroup persists bills, settlements, balances and entries", func(t *testing.T) {
		g := newTestGroup("alice", "bob", "carol")
		require.NoError(t, store.CreateGroup(ctx, g))

		updated, err := store.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			_, err := calculator.ApplyBill(g, calculator.BillInput{
				Description: "Dinner",
				Total:       dec("90.30"),
				PayerID:     "alice",
				Splits: []calculator.SplitInput{
					{MemberID: "alice", Amount: dec("30.10")},
					{MemberID: "bob", Amount: dec("30.10")},
					{MemberID: "carol", Amount: dec("30.10")},
				},
			}, 100)
			return nil, err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		_, err = store.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			s, err := calculator.ApplySettlement(g, "bob", "alice", dec("30.10"), 200)
			if err != nil {
				return nil, err
			}
			return []models.LedgerEntry{{
				UserID: "bob", Type: models.EntryDebit, Amount: s.Amount,
				Source: models.SourceGroupBill, RelatedID: g.ID, Description: "settle",
			}}, nil
		})
		require.NoError(t, err)

		got, err := store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Version)

		require.Len(t, got.Bills, 1)
		bill := got.Bills[0]
		assert.Equal(t, "Dinner", bill.Description)
		assert.True(t, bill.Total.Equal(dec("90.30")))
		require.Len(t, bill.Splits, 3)
		assert.Equal(t, "alice", bill.Splits[0].MemberID)
		assert.True(t, bill.Splits[0].IsPaid)
		assert.Equal(t, int64(100), bill.Splits[0].PaidAt)
		assert.False(t, bill.Splits[2].IsPaid)

		require.Len(t, got.Settlements, 1)
		assert.Equal(t, "bob", got.Settlements[0].FromID)

		assert.True(t, got.Member("alice").Balance.Equal(dec("30.10")))
		assert.True(t, got.Member("bob").Balance.IsZero())
		assert.True(t, got.Member("carol").Balance.Equal(dec("-30.10")))

		entries, err := store.ListLedgerEntries(ctx, "bob", storage.LedgerFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.EntryDebit, entries[0].Type)
		assert.Equal(t, models.SourceGroupBill, entries[0].Source)
		assert.Equal(t, g.ID, entries[0].RelatedID)
		assert.True(t, entries[0].Amount.Equal(dec("30.10")))
	})

	t.Run("UpdateGroup mutation error writes nothing", func(t *testing.T) {
		g := newTestGroup("alice", "bob")
		require.NoError(t, store.CreateGroup(ctx, g))

		boom := errors.New("boom")
		_, err := store.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			g.Members[0].Balance = dec("99")
			g.Name = "changed"
			return nil, boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Roommates", got.Name)
		assert.True(t, got.Members[0].Balance.IsZero())
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("UpdateGroup on missing group", func(t *testing.T) {
		_, err := store.UpdateGroup(ctx, "missing", func(g *models.Group) ([]models.LedgerEntry, error) {
			return nil, nil
		})
		require.ErrorIs(t, err, storage.ErrGroupNotFound)
	})

	t.Run("ListGroupsForMember skips inactive groups and memberships", func(t *testing.T) {
		mine := newTestGroup("dave", "erin")
		require.NoError(t, store.CreateGroup(ctx, mine))
		left := newTestGroup("frank", "dave")
		require.NoError(t, store.CreateGroup(ctx, left))
		deleted := newTestGroup("dave")
		require.NoError(t, store.CreateGroup(ctx, deleted))

		_, err := store.UpdateGroup(ctx, left.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			g.Member("dave").IsActive = false
			return nil, nil
		})
		require.NoError(t, err)
		_, err = store.UpdateGroup(ctx, deleted.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			g.IsActive = false
			return nil, nil
		})
		require.NoError(t, err)

		groups, err := store.ListGroupsForMember(ctx, "dave")
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, mine.ID, groups[0].ID)
	})
}

func TestUpdateGroupSerializesConcurrentWriters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := newTestGroup("alice", "bob")
	require.NoError(t, store.CreateGroup(ctx, g))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
				_, err := calculator.ApplySettlement(g, "bob", "alice", dec("1"), 1)
				return nil, err
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, got.Settlements, writers)
	assert.True(t, got.Member("bob").Balance.Equal(dec("20")))
	assert.True(t, got.Member("alice").Balance.Equal(dec("-20")))
	assert.Equal(t, int64(writers+1), got.Version)
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("alice@example.com", "Alice", "hash")
	require.NoError(t, store.CreateUser(ctx, user))

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "Alice", byEmail.DisplayName)

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, storage.ErrUserNotFound)

	dup := models.NewUser("alice@example.com", "Other Alice", "hash")
	require.ErrorIs(t, store.CreateUser(ctx, dup), storage.ErrEmailExists)
}

func TestListLedgerEntriesLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.CreateLedgerEntry(ctx, &models.LedgerEntry{
			UserID: "alice", Type: models.EntryCredit, Amount: decimal.NewFromInt(int64(i)),
			Source: models.SourceManual, CreatedAt: int64(i),
		}))
	}

	entries, err := store.ListLedgerEntries(ctx, "alice", storage.LedgerFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].CreatedAt, "newest first")
	assert.Equal(t, int64(2), entries[1].CreatedAt)

	entries, err = store.ListLedgerEntries(ctx, "alice", storage.LedgerFilter{Offset: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1, "offset without limit")
	assert.Equal(t, int64(1), entries[0].CreatedAt)
}

func TestSummarizeLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []struct {
		typ    models.EntryType
		amount string
	}{
		{models.EntryCredit, "0.10"},
		{models.EntryCredit, "0.20"},
		{models.EntryDebit, "0.05"},
	} {
		require.NoError(t, store.CreateLedgerEntry(ctx, &models.LedgerEntry{
			UserID: "alice", Type: e.typ, Amount: dec(e.amount), Source: models.SourceManual, CreatedAt: 1,
		}))
	}

	summary, err := store.SummarizeLedger(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, summary.Credits.Equal(dec("0.30")), "exact decimal sum, got %s", summary.Credits)
	assert.True(t, summary.Debits.Equal(dec("0.05")))
	assert.Equal(t, 3, summary.Count)
}

func TestUpdateGroupStaleAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	first, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	ctx := context.Background()

	rename := func(name string) storage.Mutation {
		return func(g *models.Group) ([]models.LedgerEntry, error) {
			g.Name = name
			return nil, nil
		}
	}

	t.Run("write from another store between read and commit is retried", func(t *testing.T) {
		g := newTestGroup("alice", "bob")
		require.NoError(t, first.CreateGroup(ctx, g))

		calls := 0
		updated, err := first.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			calls++
			if calls == 1 {
				_, err := second.UpdateGroup(ctx, g.ID, rename("Renamed elsewhere"))
				require.NoError(t, err)
			}
			g.Description = "from first"
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, int64(3), updated.Version)

		got, err := second.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed elsewhere", got.Name, "the other store's write survives")
		assert.Equal(t, "from first", got.Description)
		assert.Equal(t, int64(3), got.Version)
	})

	t.Run("persistent interference ends in ErrConflict", func(t *testing.T) {
		g := newTestGroup("alice", "bob")
		require.NoError(t, first.CreateGroup(ctx, g))

		limited, err := New(path, WithMaxRetries(2))
		require.NoError(t, err)
		t.Cleanup(func() { limited.Close() })

		_, err = limited.UpdateGroup(ctx, g.ID, func(g *models.Group) ([]models.LedgerEntry, error) {
			_, err := second.UpdateGroup(ctx, g.ID, rename("Busy"))
			require.NoError(t, err)
			return nil, nil
		})
		require.ErrorIs(t, err, storage.ErrConflict)

		got, err := second.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Version, "only the other store's two writes landed")
	})
}
