package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/groups"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

var errSplitMode = errors.New("exactly one of splits, split_equally or items is required")

// GroupService implements the Connect GroupService on top of groups.Manager.
type GroupService struct {
	groups *groups.Manager
	logger *slog.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(manager *groups.Manager, logger *slog.Logger) *GroupService {
	return &GroupService{groups: manager, logger: logger}
}

// CreateGroup creates a group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.CreateGroup(ctx, caller, req.Msg.Name, req.Msg.Description, req.Msg.MemberIDs)
	if err != nil {
		return nil, toConnectError(s.logger, "CreateGroup", err)
	}
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(g)}), nil
}

// GetGroup returns a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.GetGroup(ctx, caller, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(s.logger, "GetGroup", err)
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(g)}), nil
}

// ListGroups lists the caller's active groups.
func (s *GroupService) ListGroups(ctx context.Context, _ *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.groups.ListGroups(ctx, caller)
	if err != nil {
		return nil, toConnectError(s.logger, "ListGroups", err)
	}

	out := make([]*api.Group, len(list))
	for i, g := range list {
		out[i] = toAPIGroup(g)
	}
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// UpdateGroup renames a group.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.UpdateGroup(ctx, caller, req.Msg.GroupID, req.Msg.Name, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(s.logger, "UpdateGroup", err)
	}
	return connect.NewResponse(&api.UpdateGroupResponse{Group: toAPIGroup(g)}), nil
}

// DeleteGroup soft-deletes a group.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.groups.DeleteGroup(ctx, caller, req.Msg.GroupID); err != nil {
		return nil, toConnectError(s.logger, "DeleteGroup", err)
	}
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// AddMember adds a user to the group, or reactivates one who left.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.AddMember(ctx, caller, req.Msg.GroupID, req.Msg.MemberID)
	if err != nil {
		return nil, toConnectError(s.logger, "AddMember", err)
	}
	return connect.NewResponse(&api.AddMemberResponse{Group: toAPIGroup(g)}), nil
}

// RemoveMember deactivates a member whose balance is settled.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.RemoveMember(ctx, caller, req.Msg.GroupID, req.Msg.MemberID)
	if err != nil {
		return nil, toConnectError(s.logger, "RemoveMember", err)
	}
	return connect.NewResponse(&api.RemoveMemberResponse{Group: toAPIGroup(g)}), nil
}

// AddBill records a bill. The split is given explicitly, equally among
// participants, or derived from itemized lines.
func (s *GroupService) AddBill(ctx context.Context, req *connect.Request[api.AddBillRequest]) (*connect.Response[api.AddBillResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	in, err := billInput(req.Msg)
	if err != nil {
		return nil, toConnectError(s.logger, "AddBill", err)
	}

	g, err := s.groups.AddBill(ctx, caller, req.Msg.GroupID, in)
	if err != nil {
		return nil, toConnectError(s.logger, "AddBill", err)
	}
	bill := &g.Bills[len(g.Bills)-1]
	return connect.NewResponse(&api.AddBillResponse{Bill: toAPIBill(bill), Group: toAPIGroup(g)}), nil
}

func billInput(msg *api.AddBillRequest) (calculator.BillInput, error) {
	in := calculator.BillInput{
		Description: msg.Description,
		Total:       msg.Total,
		PayerID:     msg.PayerID,
	}

	modes := 0
	if len(msg.Splits) > 0 {
		modes++
	}
	if msg.SplitEqually {
		modes++
	}
	if len(msg.Items) > 0 {
		modes++
	}
	if modes != 1 {
		return in, errSplitMode
	}

	var err error
	switch {
	case len(msg.Splits) > 0:
		for _, sp := range msg.Splits {
			in.Splits = append(in.Splits, calculator.SplitInput{MemberID: sp.MemberID, Amount: sp.Amount})
		}
	case msg.SplitEqually:
		in.Splits, err = calculator.EqualSplits(msg.Total, msg.ParticipantIDs)
	default:
		in.Splits, err = calculator.ItemizedSplits(toCalculatorItems(msg.Items), msg.Total, msg.Subtotal)
	}
	return in, err
}

// RecordSettlement records a payment between two members.
func (s *GroupService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.RecordSettlement(ctx, caller, req.Msg.GroupID, req.Msg.FromID, req.Msg.ToID, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(s.logger, "RecordSettlement", err)
	}
	settlement := &g.Settlements[len(g.Settlements)-1]
	return connect.NewResponse(&api.RecordSettlementResponse{Settlement: toAPISettlement(settlement), Group: toAPIGroup(g)}), nil
}

// GetBalance returns balances and suggested settlements.
func (s *GroupService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.groups.GetBalance(ctx, caller, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(s.logger, "GetBalance", err)
	}
	return connect.NewResponse(toAPIBalance(view)), nil
}
