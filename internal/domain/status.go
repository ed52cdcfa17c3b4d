package domain

import "fmt"

// Status represents the current lifecycle status of a booking.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusConfirmed  Status = "confirmed"
	StatusEnRoute    Status = "en_route"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
	StatusDisputed   Status = "disputed"
	StatusRefunded   Status = "refunded"
)

var knownStatuses = map[Status]bool{
	StatusPending: true, StatusAccepted: true, StatusConfirmed: true, StatusEnRoute: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true, StatusRejected: true,
	StatusDisputed: true, StatusRefunded: true,
}

// IsValid returns true if the status is a recognized booking status.
func (s Status) IsValid() bool {
	return knownStatuses[s]
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusRefunded:
		return true
	}
	return false
}

// IsTrackable reports whether the assigned technician may publish location fixes.
func (s Status) IsTrackable() bool {
	switch s {
	case StatusAccepted, StatusConfirmed, StatusEnRoute, StatusInProgress:
		return true
	}
	return false
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// Action is a lifecycle verb that moves a booking between statuses.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionExpire   Action = "expire"
	ActionConfirm  Action = "confirm"
	ActionDepart   Action = "depart"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type transitionRule struct {
	from  []Status
	to    Status
	roles []Role
}

// acceptedPhase covers accepted and its optional display states.
var acceptedPhase = []Status{StatusAccepted, StatusConfirmed, StatusEnRoute}

var nonTerminal = []Status{
	StatusPending, StatusAccepted, StatusConfirmed, StatusEnRoute, StatusInProgress, StatusDisputed,
}

var transitionRules = map[Action][]transitionRule{
	ActionAccept: {
		{from: []Status{StatusPending}, to: StatusAccepted, roles: []Role{RoleTechnician}},
	},
	ActionReject: {
		{from: []Status{StatusPending}, to: StatusRejected, roles: []Role{RoleTechnician}},
	},
	ActionExpire: {
		{from: []Status{StatusPending}, to: StatusCancelled, roles: []Role{RoleSystem}},
	},
	ActionConfirm: {
		{from: []Status{StatusAccepted}, to: StatusConfirmed, roles: []Role{RoleTechnician}},
	},
	ActionDepart: {
		{from: []Status{StatusAccepted, StatusConfirmed}, to: StatusEnRoute, roles: []Role{RoleTechnician}},
	},
	ActionStart: {
		{from: acceptedPhase, to: StatusInProgress, roles: []Role{RoleTechnician}},
	},
	ActionComplete: {
		{from: []Status{StatusInProgress}, to: StatusCompleted, roles: []Role{RoleTechnician}},
	},
	ActionCancel: {
		{from: append([]Status{StatusPending}, acceptedPhase...), to: StatusCancelled, roles: []Role{RoleCustomer}},
		{from: append(append([]Status{}, acceptedPhase...), StatusInProgress), to: StatusCancelled, roles: []Role{RoleTechnician}},
		{from: nonTerminal, to: StatusCancelled, roles: []Role{RoleAdmin}},
	},
}

// ActionFor maps a requested target status to the lifecycle action that reaches it.
func ActionFor(target Status) (Action, bool) {
	switch target {
	case StatusAccepted:
		return ActionAccept, true
	case StatusRejected:
		return ActionReject, true
	case StatusConfirmed:
		return ActionConfirm, true
	case StatusEnRoute:
		return ActionDepart, true
	case StatusInProgress:
		return ActionStart, true
	case StatusCompleted:
		return ActionComplete, true
	case StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

// NextStatus resolves the status reached by applying action from the given status.
// A role that can never perform the action gets a ForbiddenError; a role that could,
// but not from this status, gets an InvalidTransitionError.
func NextStatus(from Status, action Action, role Role) (Status, error) {
	rules, ok := transitionRules[action]
	if !ok {
		return "", &InvalidTransitionError{From: from, Action: action, Role: role}
	}

	if !roleMayPerform(rules, role) {
		return "", &ForbiddenError{Role: role, Action: string(action)}
	}

	if from.IsTerminal() {
		return "", &InvalidTransitionError{From: from, Action: action, Role: role}
	}

	for _, rule := range rules {
		if containsStatus(rule.from, from) && containsRole(rule.roles, role) {
			return rule.to, nil
		}
	}

	return "", &InvalidTransitionError{From: from, Action: action, Role: role}
}

func roleMayPerform(rules []transitionRule, role Role) bool {
	for _, rule := range rules {
		if containsRole(rule.roles, role) {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsRole(list []Role, r Role) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
