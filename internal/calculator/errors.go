package calculator

import "errors"

var (
	ErrSplitMismatch        = errors.New("split amounts do not add up to the bill total")
	ErrMemberNotFound       = errors.New("member is not an active member of the group")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrEmptySplits          = errors.New("bill must have at least one split")
	ErrDuplicateSplitMember = errors.New("member appears more than once in splits")
	ErrSameMember           = errors.New("settlement payer and payee must differ")
	ErrNoParticipants       = errors.New("must have at least one participant")
	ErrZeroSubtotal         = errors.New("subtotal must be positive")
	ErrSubtotalMismatch     = errors.New("item amounts do not add up to the subtotal")
)
