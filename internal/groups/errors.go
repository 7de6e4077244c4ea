package groups

import (
	"errors"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/storage"
)

var (
	ErrGroupNotFound               = storage.ErrGroupNotFound
	ErrMemberNotFound              = calculator.ErrMemberNotFound
	ErrMemberHasOutstandingBalance = errors.New("member has an outstanding balance")
	ErrMemberAlreadyExists         = errors.New("user is already an active member of the group")
	ErrNotGroupOwner               = errors.New("only the group owner can do this")
	ErrOwnerCannotLeave            = errors.New("the group owner cannot be removed")
	ErrInvalidName                 = errors.New("group name is required")
)
