package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/groupledger/internal/models"
)

// insertBill appends a bill and its splits at the given position.
func insertBill(ctx context.Context, q querier, groupID string, position int, bill *models.Bill) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO bills (id, group_id, position, description, total, payer_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, groupID, position, bill.Description, bill.Total.String(), bill.PayerID, bill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	for i, split := range bill.Splits {
		_, err = q.ExecContext(ctx,
			`INSERT INTO bill_splits (bill_id, position, member_id, amount, is_paid, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			bill.ID, i, split.MemberID, split.Amount.String(), split.IsPaid, split.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

// insertSettlement appends a settlement at the given position.
func insertSettlement(ctx context.Context, q querier, groupID string, position int, s *models.Settlement) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, position, from_id, to_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, groupID, position, s.FromID, s.ToID, s.Amount.String(), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// loadBills returns the group's bills in order, with their splits.
func loadBills(ctx context.Context, q querier, groupID string) ([]models.Bill, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, description, total, payer_id, created_at FROM bills
		 WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bills: %w", err)
	}

	var bills []models.Bill
	index := make(map[string]int)
	for rows.Next() {
		var b models.Bill
		if err := rows.Scan(&b.ID, &b.Description, &b.Total, &b.PayerID, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		index[b.ID] = len(bills)
		bills = append(bills, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}
	if len(bills) == 0 {
		return nil, nil
	}

	splitRows, err := q.QueryContext(ctx,
		`SELECT s.bill_id, s.member_id, s.amount, s.is_paid, s.paid_at
		 FROM bill_splits s JOIN bills b ON b.id = s.bill_id
		 WHERE b.group_id = ? ORDER BY b.position, s.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var billID string
		var split models.Split
		if err := splitRows.Scan(&billID, &split.MemberID, &split.Amount, &split.IsPaid, &split.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		i, ok := index[billID]
		if !ok {
			continue
		}
		bills[i].Splits = append(bills[i].Splits, split)
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return bills, nil
}

// loadSettlements returns the group's settlements in order.
func loadSettlements(ctx context.Context, q querier, groupID string) ([]models.Settlement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, from_id, to_id, amount, created_at FROM settlements
		 WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var s models.Settlement
		if err := rows.Scan(&s.ID, &s.FromID, &s.ToID, &s.Amount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
