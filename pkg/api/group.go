package api

import "github.com/shopspring/decimal"

// Group is a group with its full history.
type Group struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Members     []*Member     `json:"members"`
	Bills       []*Bill       `json:"bills"`
	Settlements []*Settlement `json:"settlements"`
	Version     int64         `json:"version"`
	CreatedAt   int64         `json:"created_at"`
	UpdatedAt   int64         `json:"updated_at"`
}

// Member is one membership. Balance is positive when the group owes the member.
type Member struct {
	UserID   string          `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	IsActive bool            `json:"is_active"`
	JoinedAt int64           `json:"joined_at"`
}

type Bill struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
	PayerID     string          `json:"payer_id"`
	Splits      []*Split        `json:"splits"`
	CreatedAt   int64           `json:"created_at"`
}

type Split struct {
	MemberID string          `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
	IsPaid   bool            `json:"is_paid"`
	PaidAt   int64           `json:"paid_at,omitempty"`
}

type Settlement struct {
	ID        string          `json:"id"`
	FromID    string          `json:"from_id"`
	ToID      string          `json:"to_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt int64           `json:"created_at"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	MemberIDs   []string `json:"member_ids" validate:"max=100,dive,required"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type UpdateGroupRequest struct {
	GroupID     string `json:"group_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type DeleteGroupResponse struct{}

type AddMemberRequest struct {
	GroupID  string `json:"group_id" validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
}

type AddMemberResponse struct {
	Group *Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"group_id" validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
}

type RemoveMemberResponse struct {
	Group *Group `json:"group"`
}

// SplitInput is one member's requested share of a bill.
type SplitInput struct {
	MemberID string          `json:"member_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// Item is a line on an itemized bill, shared equally by AssignedTo.
type Item struct {
	Description string          `json:"description" validate:"max=200"`
	Amount      decimal.Decimal `json:"amount"`
	AssignedTo  []string        `json:"assigned_to" validate:"required,min=1,dive,required"`
}

// AddBillRequest carries exactly one way of splitting the bill: explicit
// Splits, SplitEqually among ParticipantIDs, or Items with their Subtotal
// (tax and tip are then shared pro rata).
type AddBillRequest struct {
	GroupID     string          `json:"group_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=200"`
	Total       decimal.Decimal `json:"total"`
	PayerID     string          `json:"payer_id" validate:"required"`

	Splits []*SplitInput `json:"splits,omitempty" validate:"dive,required"`

	SplitEqually   bool     `json:"split_equally,omitempty"`
	ParticipantIDs []string `json:"participant_ids,omitempty" validate:"dive,required"`

	Items    []*Item         `json:"items,omitempty" validate:"dive,required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type AddBillResponse struct {
	Bill  *Bill  `json:"bill"`
	Group *Group `json:"group"`
}

type RecordSettlementRequest struct {
	GroupID string          `json:"group_id" validate:"required"`
	FromID  string          `json:"from_id" validate:"required"`
	ToID    string          `json:"to_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

type RecordSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
	Group      *Group      `json:"group"`
}

type GetBalanceRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type MemberBalance struct {
	MemberID string          `json:"member_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// Transfer is a suggested payment: From pays To.
type Transfer struct {
	FromID string          `json:"from_id"`
	ToID   string          `json:"to_id"`
	Amount decimal.Decimal `json:"amount"`
}

type GetBalanceResponse struct {
	GroupID              string           `json:"group_id"`
	Version              int64            `json:"version"`
	Balances             []*MemberBalance `json:"balances"`
	SuggestedSettlements []*Transfer      `json:"suggested_settlements"`
}
