package calculator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupledger/internal/models"
)

// Tolerance is the absolute slack allowed when comparing money amounts.
var Tolerance = decimal.New(1, -2)

// cent is the smallest currency unit handed out when allocating remainders.
var cent = decimal.New(1, -2)

// SplitInput is one member's requested share of a bill.
type SplitInput struct {
	MemberID string
	Amount   decimal.Decimal
}

// BillInput describes a bill to be recorded against a group.
type BillInput struct {
	Description string
	Total       decimal.Decimal
	PayerID     string
	Splits      []SplitInput
}

// Item is a single line on an itemized bill, shared equally by AssignedTo.
type Item struct {
	Description string
	Amount      decimal.Decimal
	AssignedTo  []string
}

// ApplyBill validates in against g and, if valid, appends the bill and
// updates member balances. On error g is left untouched.
//
// The payer is credited with exactly what the other split members are
// debited, so the sum of balances never drifts even when the splits are
// within tolerance of, but not equal to, the total.
func ApplyBill(g *models.Group, in BillInput, now int64) (*models.Bill, error) {
	if !in.Total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(in.Splits) == 0 {
		return nil, ErrEmptySplits
	}
	if g.ActiveMember(in.PayerID) == nil {
		return nil, fmt.Errorf("%w: payer %s", ErrMemberNotFound, in.PayerID)
	}

	seen := make(map[string]bool, len(in.Splits))
	sum := decimal.Zero
	for _, s := range in.Splits {
		if s.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: split for %s is negative", ErrInvalidAmount, s.MemberID)
		}
		if seen[s.MemberID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSplitMember, s.MemberID)
		}
		seen[s.MemberID] = true
		if g.ActiveMember(s.MemberID) == nil {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, s.MemberID)
		}
		sum = sum.Add(s.Amount)
	}
	if sum.Sub(in.Total).Abs().GreaterThan(Tolerance) {
		return nil, fmt.Errorf("%w: splits sum to %s, total is %s", ErrSplitMismatch, sum.StringFixed(2), in.Total.StringFixed(2))
	}

	bill := models.Bill{
		ID:          uuid.New().String(),
		Description: in.Description,
		Total:       in.Total,
		PayerID:     in.PayerID,
		Splits:      make([]models.Split, len(in.Splits)),
		CreatedAt:   now,
	}

	owedToPayer := decimal.Zero
	for i, s := range in.Splits {
		split := models.Split{MemberID: s.MemberID, Amount: s.Amount}
		if s.MemberID == in.PayerID {
			split.IsPaid = true
			split.PaidAt = now
		} else {
			m := g.ActiveMember(s.MemberID)
			m.Balance = m.Balance.Sub(s.Amount)
			owedToPayer = owedToPayer.Add(s.Amount)
		}
		bill.Splits[i] = split
	}
	payer := g.ActiveMember(in.PayerID)
	payer.Balance = payer.Balance.Add(owedToPayer)

	g.Bills = append(g.Bills, bill)
	return &g.Bills[len(g.Bills)-1], nil
}

// EqualSplits divides total evenly among memberIDs in whole cents.
// Leftover cents go to the first members in the given order.
func EqualSplits(total decimal.Decimal, memberIDs []string) ([]SplitInput, error) {
	if len(memberIDs) == 0 {
		return nil, ErrNoParticipants
	}
	weights := make([]decimal.Decimal, len(memberIDs))
	for i := range weights {
		weights[i] = decimal.NewFromInt(1)
	}
	return allocate(total, memberIDs, weights), nil
}

// ItemizedSplits computes each person's share of an itemized bill including
// proportional tax: person_total = person_subtotal × (total / subtotal).
// Items with no assignees are ignored. subtotal must equal the sum of the
// assigned item amounts within Tolerance. Amounts are whole cents summing to
// total.
func ItemizedSplits(items []Item, total, subtotal decimal.Decimal) ([]SplitInput, error) {
	if !subtotal.IsPositive() {
		return nil, ErrZeroSubtotal
	}

	subtotals := make(map[string]decimal.Decimal)
	var order []string
	assigned := decimal.Zero
	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		if item.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: item %q is negative", ErrInvalidAmount, item.Description)
		}
		assigned = assigned.Add(item.Amount)
		share := item.Amount.Div(decimal.NewFromInt(int64(len(item.AssignedTo))))
		for _, person := range item.AssignedTo {
			if _, ok := subtotals[person]; !ok {
				order = append(order, person)
			}
			subtotals[person] = subtotals[person].Add(share)
		}
	}
	if len(order) == 0 {
		return nil, ErrNoParticipants
	}
	if !assigned.IsPositive() {
		return nil, ErrZeroSubtotal
	}
	if assigned.Sub(subtotal).Abs().GreaterThan(Tolerance) {
		return nil, fmt.Errorf("%w: items sum to %s, subtotal is %s",
			ErrSubtotalMismatch, assigned.StringFixed(2), subtotal.StringFixed(2))
	}

	weights := make([]decimal.Decimal, len(order))
	for i, person := range order {
		weights[i] = subtotals[person]
	}
	return allocate(total, order, weights), nil
}

// allocate splits total across ids proportionally to weights, which must sum
// to a positive value. Each share is truncated to cents and the remaining
// cents are spread evenly, with the odd ones going to the largest fractional
// remainders first (ties keep input order).
func allocate(total decimal.Decimal, ids []string, weights []decimal.Decimal) []SplitInput {
	weightSum := decimal.Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}

	out := make([]SplitInput, len(ids))
	remainders := make([]decimal.Decimal, len(ids))
	assigned := decimal.Zero
	for i, id := range ids {
		exact := total.Mul(weights[i]).DivRound(weightSum, 8)
		share := exact.Truncate(2)
		out[i] = SplitInput{MemberID: id, Amount: share}
		remainders[i] = exact.Sub(share)
		assigned = assigned.Add(share)
	}

	left := total.Round(2).Sub(assigned)
	if !left.IsPositive() || len(ids) == 0 {
		return out
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	each, extra := left.Div(cent).QuoRem(decimal.NewFromInt(int64(len(ids))), 0)
	odd := int(extra.IntPart())
	for k, i := range order {
		add := each
		if k < odd {
			add = add.Add(decimal.NewFromInt(1))
		}
		out[i].Amount = out[i].Amount.Add(add.Mul(cent))
	}
	return out
}
