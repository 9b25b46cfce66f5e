package review

import "fmt"

// DocumentStatus represents document lifecycle states.
type DocumentStatus string

const (
	StatusNew       DocumentStatus = "NEW"
	StatusIngested  DocumentStatus = "INGESTED"
	StatusProcessed DocumentStatus = "PROCESSED"
	StatusApproved  DocumentStatus = "APPROVED"
	StatusFailed    DocumentStatus = "FAILED"
)

// TransitionRule defines an allowed lifecycle transition.
type TransitionRule struct {
	From DocumentStatus
	To   DocumentStatus
}

// DefaultTransitions is the linear lifecycle progression. FAILED is reachable
// from every non-approved state; APPROVED and FAILED are terminal.
var DefaultTransitions = []TransitionRule{
	{From: StatusNew, To: StatusIngested},
	{From: StatusIngested, To: StatusProcessed},
	{From: StatusProcessed, To: StatusApproved},
	{From: StatusNew, To: StatusFailed},
	{From: StatusIngested, To: StatusFailed},
	{From: StatusProcessed, To: StatusFailed},
}

// LifecycleMachine validates document status transitions.
type LifecycleMachine struct {
	transitions []TransitionRule
}

// NewLifecycleMachine creates a machine with the default rules.
func NewLifecycleMachine() *LifecycleMachine {
	return &LifecycleMachine{transitions: DefaultTransitions}
}

// ValidateTransition checks whether from->to is allowed. Returns nil if
// allowed, a structured TransitionError with a machine-readable code if not.
func (m *LifecycleMachine) ValidateTransition(from, to DocumentStatus) error {
	if from == to {
		// Same state is a no-op, allow it.
		return nil
	}
	if from == StatusApproved {
		return &TransitionError{
			Code:    "DOCUMENT_APPROVED_TERMINAL",
			From:    from,
			To:      to,
			Message: "approved documents cannot change state",
		}
	}
	for _, t := range m.transitions {
		if t.From == from && t.To == to {
			return nil
		}
	}
	return &TransitionError{
		Code:    "LIFECYCLE_INVALID_TRANSITION",
		From:    from,
		To:      to,
		Message: fmt.Sprintf("no transition defined from %s to %s", from, to),
	}
}

// AllowedTransitions returns all valid target states from the given state.
func (m *LifecycleMachine) AllowedTransitions(from DocumentStatus) []DocumentStatus {
	var allowed []DocumentStatus
	for _, t := range m.transitions {
		if t.From == from {
			allowed = append(allowed, t.To)
		}
	}
	return allowed
}

// TransitionError is a structured error for invalid lifecycle transitions.
type TransitionError struct {
	Code    string         `json:"code"`
	From    DocumentStatus `json:"from"`
	To      DocumentStatus `json:"to"`
	Message string         `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
