package sched

import "fmt"

// Action is the closed set of things an agent can be scheduled to do.
type Action uint8

const (
	ActionNone Action = iota
	ActionInformativeMeeting
	ActionInventory
	ActionDocument
	ActionAdmit
	ActionEvaluate
	ActionMedicate
	ActionRequestAdmission
	ActionRequestEvaluation
	ActionRequestMedication
)

var actionNames = [...]string{
	ActionNone:               "none",
	ActionInformativeMeeting: "informative-meeting",
	ActionInventory:          "inventory",
	ActionDocument:           "document",
	ActionAdmit:              "admit",
	ActionEvaluate:           "evaluate",
	ActionMedicate:           "medicate",
	ActionRequestAdmission:   "request-admission",
	ActionRequestEvaluation:  "request-evaluation",
	ActionRequestMedication:  "request-medication",
}

// Actions lists every schedulable action.
func Actions() []Action {
	out := make([]Action, 0, len(actionNames)-1)
	for a := ActionInformativeMeeting; int(a) < len(actionNames); a++ {
		out = append(out, a)
	}
	return out
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction maps a configured action name to its Action.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name && Action(a) != ActionNone {
			return Action(a), nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Spec is the static configuration of one action.
type Spec struct {
	// Priority class; higher runs first.
	Priority int
	// State is the owner's activity label while the action runs.
	State string
	// PartnerState is the label given to the interaction partner, if any.
	PartnerState string
	// AwaitsPartner pins the action until the partner releases it.
	AwaitsPartner bool
}

// ActionTable maps actions to their configuration.
type ActionTable map[Action]Spec

// Lookup returns the table entry for a. Unknown actions get priority 0 and their own
// name as state label.
func (t ActionTable) Lookup(a Action) Spec {
	if s, ok := t[a]; ok {
		return s
	}
	return Spec{State: a.String()}
}

// Validate checks that every schedulable action is configured.
func (t ActionTable) Validate() error {
	for _, a := range Actions() {
		s, ok := t[a]
		if !ok {
			return fmt.Errorf("action %s not configured", a)
		}
		if s.State == "" {
			return fmt.Errorf("action %s: empty state label", a)
		}
	}
	return nil
}

// DefaultActions is the ward's built-in action table.
func DefaultActions() ActionTable {
	return ActionTable{
		ActionInformativeMeeting: {Priority: 2, State: "in-meeting"},
		ActionInventory:          {Priority: 2, State: "taking-inventory"},
		ActionDocument:           {Priority: 0, State: "documenting"},
		ActionAdmit:              {Priority: 1, State: "admitting", PartnerState: "in-admission"},
		ActionEvaluate:           {Priority: 1, State: "evaluating", PartnerState: "in-evaluation"},
		ActionMedicate:           {Priority: 1, State: "medicating", PartnerState: "in-medication"},
		ActionRequestAdmission:   {Priority: 0, State: "waiting-admission", AwaitsPartner: true},
		ActionRequestEvaluation:  {Priority: 0, State: "waiting-evaluation", AwaitsPartner: true},
		ActionRequestMedication:  {Priority: 0, State: "waiting-medication", AwaitsPartner: true},
	}
}
