package service

import "fixitnow/internal/domain"

// Verbs checked by the policy that are not status transitions.
const (
	actionCreate  domain.Action = "create"
	actionRead    domain.Action = "read"
	actionView    domain.Action = "view"
	actionTrack   domain.Action = "track"
	actionDispute domain.Action = "dispute"
	actionResolve domain.Action = "resolve dispute"
)

// candidateActions are the only verbs a broadcast candidate may perform before winning.
var candidateActions = map[domain.Action]bool{
	domain.ActionAccept: true,
	domain.ActionReject: true,
	actionView:          true,
	actionRead:          true,
}

// Policy is the single ownership guard run before every booking operation.
// Role capability per transition is checked separately by domain.NextStatus.
type Policy struct{}

// Authorize returns a ForbiddenError unless actor is a party allowed to attempt action on b.
func (Policy) Authorize(b *domain.Booking, actor domain.Actor, action domain.Action) error {
	forbidden := &domain.ForbiddenError{Role: actor.Role, Action: string(action)}

	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSystem:
		if action == domain.ActionExpire {
			return nil
		}
		return forbidden
	case domain.RoleCustomer:
		if b.CustomerID == actor.ID {
			return nil
		}
		return forbidden
	case domain.RoleTechnician:
		if b.TechnicianID != "" && b.TechnicianID == actor.ID {
			return nil
		}
		if isCandidate(b, actor.ID) && candidateActions[action] {
			return nil
		}
		return forbidden
	}
	return forbidden
}

func isCandidate(b *domain.Booking, technicianID string) bool {
	if b.BroadcastState == nil {
		return false
	}
	_, ok := b.BroadcastState.Candidates.Find(technicianID)
	return ok
}
