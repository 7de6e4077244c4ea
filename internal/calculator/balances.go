package calculator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/models"
)

// MemberBalance is one member's current net position in a group.
type MemberBalance struct {
	MemberID string
	Balance  decimal.Decimal // Positive = owed money, Negative = owes money
}

// Transfer is a suggested payment from a debtor to a creditor.
type Transfer struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// Balances returns the balances of the group's active members in join order.
func Balances(g *models.Group) []MemberBalance {
	out := make([]MemberBalance, 0, len(g.Members))
	for _, m := range g.Members {
		if m.IsActive {
			out = append(out, MemberBalance{MemberID: m.UserID, Balance: m.Balance})
		}
	}
	return out
}

// CheckConservation sums the active members' balances and reports whether the
// sum is zero within Tolerance.
func CheckConservation(g *models.Group) (decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, m := range g.Members {
		if m.IsActive {
			sum = sum.Add(m.Balance)
		}
	}
	return sum, sum.Abs().LessThanOrEqual(Tolerance)
}

// ReplayBalances recomputes every member's balance from the group's bill and
// settlement history, applying the same rules as ApplyBill and ApplySettlement.
// Members with no history are reported as zero.
func ReplayBalances(g *models.Group) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(g.Members))
	for _, m := range g.Members {
		balances[m.UserID] = decimal.Zero
	}

	for _, bill := range g.Bills {
		for _, s := range bill.Splits {
			if s.MemberID == bill.PayerID {
				continue
			}
			balances[s.MemberID] = balances[s.MemberID].Sub(s.Amount)
			balances[bill.PayerID] = balances[bill.PayerID].Add(s.Amount)
		}
	}

	for _, s := range g.Settlements {
		// Payer's balance improves, receiver's balance decreases
		balances[s.FromID] = balances[s.FromID].Add(s.Amount)
		balances[s.ToID] = balances[s.ToID].Sub(s.Amount)
	}

	return balances
}

// ApplySettlement records a payment of amount from one member to another.
// The payer's balance increases and the payee's decreases by amount.
// On error g is left untouched.
func ApplySettlement(g *models.Group, fromID, toID string, amount decimal.Decimal, now int64) (*models.Settlement, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrSameMember
	}
	from := g.ActiveMember(fromID)
	if from == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, fromID)
	}
	to := g.ActiveMember(toID)
	if to == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, toID)
	}

	from.Balance = from.Balance.Add(amount)
	to.Balance = to.Balance.Sub(amount)

	g.Settlements = append(g.Settlements, models.Settlement{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		CreatedAt: now,
	})
	return &g.Settlements[len(g.Settlements)-1], nil
}

// SuggestSettlements computes transfers that bring every balance to zero.
//
// Algorithm (greedy, largest first):
//   - balances within Tolerance of zero are ignored
//   - creditors are sorted by balance descending, debtors by balance ascending
//     (most negative first); ties are broken by member ID
//   - the largest creditor and the largest debtor settle min(credit, debt),
//     and whichever side reaches zero is advanced past
//
// The result has at most n-1 transfers for n non-zero balances and depends only
// on the set of balances, not their order. It is not guaranteed to be the
// minimum possible number of transfers. The input is not modified.
func SuggestSettlements(balances []MemberBalance) []Transfer {
	type party struct {
		id        string
		remaining decimal.Decimal // always non-negative
	}

	var creditors, debtors []party
	for _, b := range balances {
		if b.Balance.Abs().LessThan(Tolerance) {
			continue
		}
		if b.Balance.IsPositive() {
			creditors = append(creditors, party{id: b.MemberID, remaining: b.Balance})
		} else {
			debtors = append(debtors, party{id: b.MemberID, remaining: b.Balance.Neg()})
		}
	}

	byLargest := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if c := ps[i].remaining.Cmp(ps[j].remaining); c != 0 {
				return c > 0
			}
			return ps[i].id < ps[j].id
		}
	}
	sort.SliceStable(creditors, byLargest(creditors))
	sort.SliceStable(debtors, byLargest(debtors))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		creditor := &creditors[i]
		debtor := &debtors[j]

		amount := decimal.Min(creditor.remaining, debtor.remaining)
		if amount.GreaterThan(Tolerance) {
			transfers = append(transfers, Transfer{
				From:   debtor.id,
				To:     creditor.id,
				Amount: amount.Round(2),
			})
		}

		creditor.remaining = creditor.remaining.Sub(amount)
		debtor.remaining = debtor.remaining.Sub(amount)

		// Move to next debtor/creditor if fully settled
		if creditor.remaining.LessThan(Tolerance) {
			i++
		}
		if debtor.remaining.LessThan(Tolerance) {
			j++
		}
	}

	return transfers
}
