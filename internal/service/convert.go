package service

import (
	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/groups"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/pkg/api"
)

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPIGroup(g *models.Group) *api.Group {
	out := &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		Members:     make([]*api.Member, 0, len(g.Members)),
		Bills:       make([]*api.Bill, 0, len(g.Bills)),
		Settlements: make([]*api.Settlement, 0, len(g.Settlements)),
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, &api.Member{
			UserID:   m.UserID,
			Balance:  m.Balance.Round(2),
			IsActive: m.IsActive,
			JoinedAt: m.JoinedAt,
		})
	}
	for i := range g.Bills {
		out.Bills = append(out.Bills, toAPIBill(&g.Bills[i]))
	}
	for i := range g.Settlements {
		out.Settlements = append(out.Settlements, toAPISettlement(&g.Settlements[i]))
	}
	return out
}

func toAPIBill(b *models.Bill) *api.Bill {
	out := &api.Bill{
		ID:          b.ID,
		Description: b.Description,
		Total:       b.Total,
		PayerID:     b.PayerID,
		Splits:      make([]*api.Split, 0, len(b.Splits)),
		CreatedAt:   b.CreatedAt,
	}
	for _, s := range b.Splits {
		out.Splits = append(out.Splits, &api.Split{
			MemberID: s.MemberID,
			Amount:   s.Amount,
			IsPaid:   s.IsPaid,
			PaidAt:   s.PaidAt,
		})
	}
	return out
}

func toAPISettlement(s *models.Settlement) *api.Settlement {
	return &api.Settlement{
		ID:        s.ID,
		FromID:    s.FromID,
		ToID:      s.ToID,
		Amount:    s.Amount,
		CreatedAt: s.CreatedAt,
	}
}

func toAPIBalance(v *groups.BalanceView) *api.GetBalanceResponse {
	out := &api.GetBalanceResponse{
		GroupID:              v.GroupID,
		Version:              v.Version,
		Balances:             make([]*api.MemberBalance, 0, len(v.Balances)),
		SuggestedSettlements: make([]*api.Transfer, 0, len(v.SuggestedSettlements)),
	}
	for _, b := range v.Balances {
		out.Balances = append(out.Balances, &api.MemberBalance{MemberID: b.MemberID, Balance: b.Balance.Round(2)})
	}
	for _, t := range v.SuggestedSettlements {
		out.SuggestedSettlements = append(out.SuggestedSettlements, &api.Transfer{FromID: t.From, ToID: t.To, Amount: t.Amount})
	}
	return out
}

func toAPITransaction(e *models.LedgerEntry) *api.Transaction {
	return &api.Transaction{
		ID:          e.ID,
		Type:        string(e.Type),
		Amount:      e.Amount,
		Description: e.Description,
		Source:      string(e.Source),
		RelatedID:   e.RelatedID,
		CreatedAt:   e.CreatedAt,
	}
}

func toCalculatorItems(items []*api.Item) []calculator.Item {
	out := make([]calculator.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, calculator.Item{
			Description: it.Description,
			Amount:      it.Amount,
			AssignedTo:  it.AssignedTo,
		})
	}
	return out
}
