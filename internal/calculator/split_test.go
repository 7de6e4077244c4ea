package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupledger/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newGroup(ids ...string) *models.Group {
	g := &models.Group{ID: "g1", Name: "Test", OwnerID: ids[0], IsActive: true}
	for _, id := range ids {
		g.Members = append(g.Members, models.Member{UserID: id, Balance: decimal.Zero, IsActive: true})
	}
	return g
}

func balanceOf(t *testing.T, g *models.Group, id string) decimal.Decimal {
	t.Helper()
	m := g.Member(id)
	require.NotNil(t, m, "member %s", id)
	return m.Balance
}

func assertConserved(t *testing.T, g *models.Group) {
	t.Helper()
	sum, ok := CheckConservation(g)
	assert.True(t, ok, "active balances sum to %s", sum)
}

func TestApplyBill(t *testing.T) {
	t.Run("even three-way split", func(t *testing.T) {
		g := newGroup("A", "B", "C")
		bill, err := ApplyBill(g, BillInput{
			Description: "Dinner",
			Total:       d("300"),
			PayerID:     "A",
			Splits: []SplitInput{
				{MemberID: "A", Amount: d("100")},
				{MemberID: "B", Amount: d("100")},
				{MemberID: "C", Amount: d("100")},
			},
		}, 1700000000)
		require.NoError(t, err)

		assert.True(t, balanceOf(t, g, "A").Equal(d("200")))
		assert.True(t, balanceOf(t, g, "B").Equal(d("-100")))
		assert.True(t, balanceOf(t, g, "C").Equal(d("-100")))
		assertConserved(t, g)

		require.Len(t, g.Bills, 1)
		assert.NotEmpty(t, bill.ID)
		assert.True(t, bill.Splits[0].IsPaid, "payer's own split is paid")
		assert.Equal(t, int64(1700000000), bill.Splits[0].PaidAt)
		assert.False(t, bill.Splits[1].IsPaid)
		assert.Zero(t, bill.Splits[1].PaidAt)
	})

	t.Run("payer not among splits is credited the full total", func(t *testing.T) {
		g := newGroup("A", "B", "C")
		_, err := ApplyBill(g, BillInput{
			Total:   d("50"),
			PayerID: "A",
			Splits: []SplitInput{
				{MemberID: "B", Amount: d("20")},
				{MemberID: "C", Amount: d("30")},
			},
		}, 1)
		require.NoError(t, err)
		assert.True(t, balanceOf(t, g, "A").Equal(d("50")))
		assertConserved(t, g)
	})

	t.Run("splits within tolerance are accepted", func(t *testing.T) {
		g := newGroup("A", "B")
		_, err := ApplyBill(g, BillInput{
			Total:   d("10"),
			PayerID: "A",
			Splits: []SplitInput{
				{MemberID: "A", Amount: d("5")},
				{MemberID: "B", Amount: d("5.005")},
			},
		}, 1)
		require.NoError(t, err)
		assertConserved(t, g)
		sum, _ := CheckConservation(g)
		assert.True(t, sum.IsZero(), "payer gains exactly what others owe")
	})

	errCases := []struct {
		name    string
		in      BillInput
		wantErr error
	}{
		{
			name: "splits over total by more than tolerance",
			in: BillInput{Total: d("10"), PayerID: "A", Splits: []SplitInput{
				{MemberID: "A", Amount: d("5")}, {MemberID: "B", Amount: d("5.02")},
			}},
			wantErr: ErrSplitMismatch,
		},
		{
			name:    "zero total",
			in:      BillInput{Total: d("0"), PayerID: "A", Splits: []SplitInput{{MemberID: "A", Amount: d("0")}}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative total",
			in:      BillInput{Total: d("-5"), PayerID: "A", Splits: []SplitInput{{MemberID: "A", Amount: d("-5")}}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "no splits",
			in:      BillInput{Total: d("5"), PayerID: "A"},
			wantErr: ErrEmptySplits,
		},
		{
			name:    "unknown payer",
			in:      BillInput{Total: d("5"), PayerID: "Z", Splits: []SplitInput{{MemberID: "A", Amount: d("5")}}},
			wantErr: ErrMemberNotFound,
		},
		{
			name:    "unknown split member",
			in:      BillInput{Total: d("5"), PayerID: "A", Splits: []SplitInput{{MemberID: "Z", Amount: d("5")}}},
			wantErr: ErrMemberNotFound,
		},
		{
			name: "duplicate split member",
			in: BillInput{Total: d("10"), PayerID: "A", Splits: []SplitInput{
				{MemberID: "B", Amount: d("5")}, {MemberID: "B", Amount: d("5")},
			}},
			wantErr: ErrDuplicateSplitMember,
		},
		{
			name: "negative split",
			in: BillInput{Total: d("10"), PayerID: "A", Splits: []SplitInput{
				{MemberID: "A", Amount: d("15")}, {MemberID: "B", Amount: d("-5")},
			}},
			wantErr: ErrInvalidAmount,
		},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			g := newGroup("A", "B")
			before := g.Clone()

			_, err := ApplyBill(g, tt.in, 1)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, g, "group must not be mutated on failure")
		})
	}

	t.Run("inactive member cannot be split", func(t *testing.T) {
		g := newGroup("A", "B")
		g.Members[1].IsActive = false
		_, err := ApplyBill(g, BillInput{Total: d("10"), PayerID: "A", Splits: []SplitInput{
			{MemberID: "A", Amount: d("5")}, {MemberID: "B", Amount: d("5")},
		}}, 1)
		require.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestEqualSplits(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		members []string
		want    []string
	}{
		{"divides evenly", "90", []string{"Alice", "Bob", "Charlie"}, []string{"30", "30", "30"}},
		{"leftover cent goes first", "100", []string{"Alice", "Bob", "Charlie"}, []string{"33.34", "33.33", "33.33"}},
		{"two leftover cents", "0.05", []string{"Alice", "Bob", "Charlie"}, []string{"0.02", "0.02", "0.01"}},
		{"single participant", "12.34", []string{"Alice"}, []string{"12.34"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := EqualSplits(d(tt.total), tt.members)
			require.NoError(t, err)
			require.Len(t, splits, len(tt.want))

			sum := decimal.Zero
			for i, s := range splits {
				assert.Equal(t, tt.members[i], s.MemberID)
				assert.True(t, s.Amount.Equal(d(tt.want[i])), "%s got %s, want %s", s.MemberID, s.Amount, tt.want[i])
				sum = sum.Add(s.Amount)
			}
			assert.True(t, sum.Equal(d(tt.total)))
		})
	}

	t.Run("no participants", func(t *testing.T) {
		_, err := EqualSplits(d("10"), nil)
		require.ErrorIs(t, err, ErrNoParticipants)
	})
}

func TestItemizedSplits(t *testing.T) {
	t.Run("two-person split with proportional tax", func(t *testing.T) {
		// Alice: subtotal = 10 + 10 = 20, total = 20 * 33/30 = 22
		// Bob: subtotal = 10, total = 11
		splits, err := ItemizedSplits([]Item{
			{Description: "Pizza", Amount: d("20"), AssignedTo: []string{"Alice", "Bob"}},
			{Description: "Salad", Amount: d("10"), AssignedTo: []string{"Alice"}},
		}, d("33"), d("30"))
		require.NoError(t, err)
		require.Len(t, splits, 2)
		assert.Equal(t, "Alice", splits[0].MemberID)
		assert.True(t, splits[0].Amount.Equal(d("22")), "Alice got %s", splits[0].Amount)
		assert.True(t, splits[1].Amount.Equal(d("11")), "Bob got %s", splits[1].Amount)
	})

	t.Run("rounding keeps the total exact", func(t *testing.T) {
		splits, err := ItemizedSplits([]Item{
			{Description: "Shared", Amount: d("10"), AssignedTo: []string{"A", "B", "C"}},
		}, d("10.99"), d("10"))
		require.NoError(t, err)
		sum := decimal.Zero
		for _, s := range splits {
			sum = sum.Add(s.Amount)
			assert.True(t, s.Amount.Equal(s.Amount.Round(2)), "%s is not whole cents", s.Amount)
		}
		assert.True(t, sum.Equal(d("10.99")), "sum %s", sum)
	})

	t.Run("unassigned items are skipped", func(t *testing.T) {
		splits, err := ItemizedSplits([]Item{
			{Description: "Orphan", Amount: d("5")},
			{Description: "Beer", Amount: d("5"), AssignedTo: []string{"Bob"}},
		}, d("5.50"), d("5"))
		require.NoError(t, err)
		require.Len(t, splits, 1)
		assert.True(t, splits[0].Amount.Equal(d("5.50")))
	})

	t.Run("zero subtotal should error", func(t *testing.T) {
		_, err := ItemizedSplits([]Item{{Amount: d("10"), AssignedTo: []string{"Alice"}}}, d("10"), d("0"))
		require.ErrorIs(t, err, ErrZeroSubtotal)
	})

	t.Run("items summing to zero should error", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			_, err := ItemizedSplits([]Item{
				{Description: "Free", Amount: d("0"), AssignedTo: []string{"Alice", "Bob"}},
			}, d("1000000000"), d("1"))
			done <- err
		}()
		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrZeroSubtotal)
		case <-time.After(time.Second):
			t.Fatal("ItemizedSplits did not return")
		}
	})

	t.Run("items not matching subtotal should error", func(t *testing.T) {
		_, err := ItemizedSplits([]Item{
			{Description: "Pizza", Amount: d("20"), AssignedTo: []string{"Alice", "Bob"}},
			{Description: "Salad", Amount: d("5"), AssignedTo: []string{"Alice"}},
		}, d("33"), d("30"))
		require.ErrorIs(t, err, ErrSubtotalMismatch)
	})

	t.Run("subtotal within tolerance is accepted", func(t *testing.T) {
		splits, err := ItemizedSplits([]Item{
			{Description: "Soup", Amount: d("9.995"), AssignedTo: []string{"Alice"}},
			{Description: "Bread", Amount: d("10"), AssignedTo: []string{"Bob"}},
		}, d("22"), d("20"))
		require.NoError(t, err)
		sum := splits[0].Amount.Add(splits[1].Amount)
		assert.True(t, sum.Equal(d("22")), "sum %s", sum)
	})

	t.Run("negative item should error", func(t *testing.T) {
		_, err := ItemizedSplits([]Item{
			{Description: "Refund", Amount: d("-5"), AssignedTo: []string{"Alice"}},
			{Description: "Meal", Amount: d("15"), AssignedTo: []string{"Bob"}},
		}, d("10"), d("10"))
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("no assignees should error", func(t *testing.T) {
		_, err := ItemizedSplits([]Item{{Amount: d("10")}}, d("10"), d("10"))
		require.ErrorIs(t, err, ErrNoParticipants)
	})
}

func TestAllocateLargeTotal(t *testing.T) {
	splits := allocate(d("1000000000000.01"), []string{"A", "B", "C"},
		[]decimal.Decimal{d("1"), d("1"), d("1")})

	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	assert.True(t, sum.Equal(d("1000000000000.01")), "sum %s", sum)
	assert.True(t, splits[0].Amount.Equal(d("333333333333.34")), "A got %s", splits[0].Amount)
	assert.True(t, splits[1].Amount.Equal(d("333333333333.34")), "B got %s", splits[1].Amount)
	assert.True(t, splits[2].Amount.Equal(d("333333333333.33")), "C got %s", splits[2].Amount)
}
