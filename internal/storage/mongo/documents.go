package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mmynk/groupledger/internal/models"
)

// Amounts are stored as decimal strings so no precision is lost to BSON doubles.

type groupDoc struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Description string          `bson:"description"`
	OwnerID     string          `bson:"owner_id"`
	Members     []memberDoc     `bson:"members"`
	Bills       []billDoc       `bson:"bills"`
	Settlements []settlementDoc `bson:"settlements"`
	IsActive    bool            `bson:"is_active"`
	Version     int64           `bson:"version"`
	CreatedAt   int64           `bson:"created_at"`
	UpdatedAt   int64           `bson:"updated_at"`
}

type memberDoc struct {
	UserID   string `bson:"user_id"`
	JoinedAt int64  `bson:"joined_at"`
	Balance  string `bson:"balance"`
	IsActive bool   `bson:"is_active"`
}

type billDoc struct {
	ID          string     `bson:"id"`
	Description string     `bson:"description"`
	Total       string     `bson:"total"`
	PayerID     string     `bson:"payer_id"`
	Splits      []splitDoc `bson:"splits"`
	CreatedAt   int64      `bson:"created_at"`
}

type splitDoc struct {
	MemberID string `bson:"member_id"`
	Amount   string `bson:"amount"`
	IsPaid   bool   `bson:"is_paid"`
	PaidAt   int64  `bson:"paid_at"`
}

type settlementDoc struct {
	ID        string `bson:"id"`
	FromID    string `bson:"from_id"`
	ToID      string `bson:"to_id"`
	Amount    string `bson:"amount"`
	CreatedAt int64  `bson:"created_at"`
}

type userDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	DisplayName  string `bson:"display_name"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

type entryDoc struct {
	ID          string `bson:"_id"`
	UserID      string `bson:"user_id"`
	Type        string `bson:"type"`
	Amount      string `bson:"amount"`
	Description string `bson:"description"`
	Source      string `bson:"source"`
	RelatedID   string `bson:"related_id"`
	CreatedAt   int64  `bson:"created_at"`
	Seq         int64  `bson:"seq"`
}

// summaryDoc is one $group row of SummarizeLedger.
type summaryDoc struct {
	Type  string               `bson:"_id"`
	Total primitive.Decimal128 `bson:"total"`
	Count int                  `bson:"count"`
}

func toGroupDoc(g *models.Group) groupDoc {
	doc := groupDoc{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		Members:     make([]memberDoc, 0, len(g.Members)),
		Bills:       make([]billDoc, 0, len(g.Bills)),
		Settlements: make([]settlementDoc, 0, len(g.Settlements)),
		IsActive:    g.IsActive,
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	for _, m := range g.Members {
		doc.Members = append(doc.Members, memberDoc{
			UserID:   m.UserID,
			JoinedAt: m.JoinedAt,
			Balance:  m.Balance.String(),
			IsActive: m.IsActive,
		})
	}
	for _, b := range g.Bills {
		bd := billDoc{
			ID:          b.ID,
			Description: b.Description,
			Total:       b.Total.String(),
			PayerID:     b.PayerID,
			Splits:      make([]splitDoc, 0, len(b.Splits)),
			CreatedAt:   b.CreatedAt,
		}
		for _, s := range b.Splits {
			bd.Splits = append(bd.Splits, splitDoc{
				MemberID: s.MemberID,
				Amount:   s.Amount.String(),
				IsPaid:   s.IsPaid,
				PaidAt:   s.PaidAt,
			})
		}
		doc.Bills = append(doc.Bills, bd)
	}
	for _, s := range g.Settlements {
		doc.Settlements = append(doc.Settlements, settlementDoc{
			ID:        s.ID,
			FromID:    s.FromID,
			ToID:      s.ToID,
			Amount:    s.Amount.String(),
			CreatedAt: s.CreatedAt,
		})
	}
	return doc
}

func (doc *groupDoc) toModel() (*models.Group, error) {
	g := &models.Group{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		OwnerID:     doc.OwnerID,
		IsActive:    doc.IsActive,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	for _, m := range doc.Members {
		balance, err := parseAmount(m.Balance)
		if err != nil {
			return nil, err
		}
		g.Members = append(g.Members, models.Member{
			UserID:   m.UserID,
			JoinedAt: m.JoinedAt,
			Balance:  balance,
			IsActive: m.IsActive,
		})
	}
	for _, bd := range doc.Bills {
		total, err := parseAmount(bd.Total)
		if err != nil {
			return nil, err
		}
		b := models.Bill{
			ID:          bd.ID,
			Description: bd.Description,
			Total:       total,
			PayerID:     bd.PayerID,
			CreatedAt:   bd.CreatedAt,
		}
		for _, sd := range bd.Splits {
			amount, err := parseAmount(sd.Amount)
			if err != nil {
				return nil, err
			}
			b.Splits = append(b.Splits, models.Split{
				MemberID: sd.MemberID,
				Amount:   amount,
				IsPaid:   sd.IsPaid,
				PaidAt:   sd.PaidAt,
			})
		}
		g.Bills = append(g.Bills, b)
	}
	for _, sd := range doc.Settlements {
		amount, err := parseAmount(sd.Amount)
		if err != nil {
			return nil, err
		}
		g.Settlements = append(g.Settlements, models.Settlement{
			ID:        sd.ID,
			FromID:    sd.FromID,
			ToID:      sd.ToID,
			Amount:    amount,
			CreatedAt: sd.CreatedAt,
		})
	}
	return g, nil
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (doc *userDoc) toModel() *models.User {
	return &models.User{
		ID:           doc.ID,
		Email:        doc.Email,
		DisplayName:  doc.DisplayName,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func toEntryDoc(e *models.LedgerEntry, seq int64) entryDoc {
	return entryDoc{
		ID:          e.ID,
		UserID:      e.UserID,
		Type:        string(e.Type),
		Amount:      e.Amount.String(),
		Description: e.Description,
		Source:      string(e.Source),
		RelatedID:   e.RelatedID,
		CreatedAt:   e.CreatedAt,
		Seq:         seq,
	}
}

func (doc *entryDoc) toModel() (*models.LedgerEntry, error) {
	amount, err := parseAmount(doc.Amount)
	if err != nil {
		return nil, err
	}
	return &models.LedgerEntry{
		ID:          doc.ID,
		UserID:      doc.UserID,
		Type:        models.EntryType(doc.Type),
		Amount:      amount,
		Description: doc.Description,
		Source:      models.EntrySource(doc.Source),
		RelatedID:   doc.RelatedID,
		CreatedAt:   doc.CreatedAt,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}
