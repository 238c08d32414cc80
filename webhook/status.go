package webhook

import (
	"encoding/json"
	"fmt"
)

/* Status represents the current state of a delivery
 * Follows the lifecycle: Pending -> Delivering -> Success/Retrying/Failed
 * Retrying -> Delivering repeats until Success or Failed
 */
type Status int

const (
	Pending Status = iota + 1
	Delivering
	Success
	Failed
	Retrying
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Delivering:
		return "delivering"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "delivering":
		return Delivering
	case "success":
		return Success
	case "failed":
		return Failed
	case "retrying":
		return Retrying
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Retrying {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Success || s == Failed
}

// CanTransition reports whether s may move to next
func (s Status) CanTransition(next Status) bool {
	switch s {
	case Pending, Retrying:
		return next == Delivering
	case Delivering:
		return next == Success || next == Retrying || next == Failed
	default:
		return false
	}
}

// MarshalJSON renders the status by name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a status name
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}
	parsed := NewStatus(name)
	if parsed.String() != name {
		return fmt.Errorf("invalid status: %q", name)
	}
	*s = parsed
	return nil
}
