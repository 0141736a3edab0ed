package models

import (
	"encoding/json"
	"fmt"
)

// Audit events are stored with compact integer codes for action, resource,
// and outcome. The mappings below are append-only: a code is never renumbered
// or reused once it has shipped, because stored rows keep it forever. Add new
// entries at the end with the next free number.

// ActionType identifies the kind of operation an audit event records.
type ActionType int16

const (
	ActionCreated             ActionType = 1
	ActionUpdated             ActionType = 2
	ActionDeleted             ActionType = 3
	ActionAccessed            ActionType = 4
	ActionExported            ActionType = 5
	ActionStatusChanged       ActionType = 6
	ActionRoleChanged         ActionType = 7
	ActionAuthenticated       ActionType = 8
	ActionAuthorizationDenied ActionType = 9
	ActionAdminDataSeeded     ActionType = 10
	ActionAdminDataReset      ActionType = 11
	ActionAdminDataCleanup    ActionType = 12
)

var actionNames = map[ActionType]string{
	ActionCreated:             "created",
	ActionUpdated:             "updated",
	ActionDeleted:             "deleted",
	ActionAccessed:            "accessed",
	ActionExported:            "exported",
	ActionStatusChanged:       "status_changed",
	ActionRoleChanged:         "role_changed",
	ActionAuthenticated:       "authenticated",
	ActionAuthorizationDenied: "authorization_denied",
	ActionAdminDataSeeded:     "admin_data_seeded",
	ActionAdminDataReset:      "admin_data_reset",
	ActionAdminDataCleanup:    "admin_data_cleanup",
}

var actionCodes = invert(actionNames)

// Valid reports whether the action code is a known value.
func (a ActionType) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// String returns the stable wire name for the action code.
func (a ActionType) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int16(a))
}

// ParseActionType converts a wire name back to its code.
func ParseActionType(s string) (ActionType, error) {
	if code, ok := actionCodes[s]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown action type %q", s)
}

// MarshalJSON renders the action as its wire name.
func (a ActionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts the wire name form.
func (a *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	code, err := ParseActionType(s)
	if err != nil {
		return err
	}
	*a = code
	return nil
}

// ResourceType identifies the kind of entity an audit event is about.
type ResourceType int16

const (
	ResourceOrganization ResourceType = 1
	ResourceMembership   ResourceType = 2
	ResourceProposal     ResourceType = 3
	ResourceVote         ResourceType = 4
	ResourceWebhook      ResourceType = 5
	ResourceUser         ResourceType = 6
	ResourceAuditLog     ResourceType = 7
	ResourceSystem       ResourceType = 8
)

var resourceNames = map[ResourceType]string{
	ResourceOrganization: "organization",
	ResourceMembership:   "membership",
	ResourceProposal:     "proposal",
	ResourceVote:         "vote",
	ResourceWebhook:      "webhook",
	ResourceUser:         "user",
	ResourceAuditLog:     "audit_log",
	ResourceSystem:       "system",
}

var resourceCodes = invert(resourceNames)

// Valid reports whether the resource code is a known value.
func (r ResourceType) Valid() bool {
	_, ok := resourceNames[r]
	return ok
}

// String returns the stable wire name for the resource code.
func (r ResourceType) String() string {
	if name, ok := resourceNames[r]; ok {
		return name
	}
	return fmt.Sprintf("resource(%d)", int16(r))
}

// ParseResourceType converts a wire name back to its code.
func ParseResourceType(s string) (ResourceType, error) {
	if code, ok := resourceCodes[s]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown resource type %q", s)
}

// MarshalJSON renders the resource as its wire name.
func (r ResourceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the wire name form.
func (r *ResourceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	code, err := ParseResourceType(s)
	if err != nil {
		return err
	}
	*r = code
	return nil
}

// Outcome records how the audited operation ended.
type Outcome int16

const (
	OutcomeSuccess Outcome = 1
	OutcomeFailure Outcome = 2
	OutcomeDenied  Outcome = 3
	OutcomePartial Outcome = 4
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess: "success",
	OutcomeFailure: "failure",
	OutcomeDenied:  "denied",
	OutcomePartial: "partial",
}

var outcomeCodes = invert(outcomeNames)

// Valid reports whether the outcome code is a known value.
func (o Outcome) Valid() bool {
	_, ok := outcomeNames[o]
	return ok
}

// String returns the stable wire name for the outcome code.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int16(o))
}

// ParseOutcome converts a wire name back to its code.
func ParseOutcome(s string) (Outcome, error) {
	if code, ok := outcomeCodes[s]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// MarshalJSON renders the outcome as its wire name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts the wire name form.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	code, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = code
	return nil
}

func invert[K comparable, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
