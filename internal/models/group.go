package models

import "github.com/shopspring/decimal"

// Group is a shared-expense context with its members and append-only history.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Description is optional free text.
	Description string

	// OwnerID is the user who created the group. Only the owner may rename,
	// delete or change membership.
	OwnerID string

	// Members in join order. Inactive members are kept for history.
	Members []Member

	// Bills in creation order.
	Bills []Bill

	// Settlements in creation order.
	Settlements []Settlement

	// IsActive is false once the group is deleted.
	IsActive bool

	// Version increases on every committed write and guards read-modify-write cycles.
	Version int64

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last committed write.
	UpdatedAt int64
}

// Member is one user's membership in a group.
type Member struct {
	// UserID references the member's user account.
	UserID string

	// JoinedAt is the Unix timestamp when the member (first) joined.
	JoinedAt int64

	// Balance is the member's signed net position.
	// Positive = the group owes the member, negative = the member owes the group.
	Balance decimal.Decimal

	// IsActive is false after the member has been removed.
	IsActive bool
}

// Member returns the member with the given user ID, active or not.
func (g *Group) Member(userID string) *Member {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// ActiveMember returns the member with the given user ID if it is active.
func (g *Group) ActiveMember(userID string) *Member {
	m := g.Member(userID)
	if m == nil || !m.IsActive {
		return nil
	}
	return m
}

// IsOwner reports whether userID owns the group.
func (g *Group) IsOwner(userID string) bool {
	return g.OwnerID == userID
}

// Clone returns a deep copy, so a mutation can be discarded on failure.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = append([]Member(nil), g.Members...)
	if g.Bills != nil {
		c.Bills = make([]Bill, len(g.Bills))
		for i, b := range g.Bills {
			b.Splits = append([]Split(nil), b.Splits...)
			c.Bills[i] = b
		}
	}
	c.Settlements = append([]Settlement(nil), g.Settlements...)
	return &c
}
