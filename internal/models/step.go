package models

import (
	"fmt"
	"strings"
)

// Step is one stage of the intake sequence. The zero value is StepFullName.
// Steps are totally ordered; the only backward move is a restart to StepFullName.
type Step int

// Step constants in sequence order.
const (
	StepFullName Step = iota
	StepDOB
	StepPayerName
	StepAddress
	StepInsuranceID
	StepChiefComplaint
	StepAppointment
	StepConfirm
	StepDone
)

var stepNames = [...]string{
	StepFullName:       "full_name",
	StepDOB:            "dob",
	StepPayerName:      "payer_name",
	StepAddress:        "address",
	StepInsuranceID:    "insurance_id",
	StepChiefComplaint: "chief_complaint",
	StepAppointment:    "appointment",
	StepConfirm:        "confirm",
	StepDone:           "done",
}

// Steps returns every step in sequence order, including StepDone.
func Steps() []Step {
	out := make([]Step, len(stepNames))
	for i := range stepNames {
		out[i] = Step(i)
	}
	return out
}

// String returns the wire name of the step.
func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// Valid reports whether s is a defined step.
func (s Step) Valid() bool {
	return s >= StepFullName && s <= StepDone
}

// Terminal reports whether s has no outgoing transitions.
func (s Step) Terminal() bool {
	return s == StepDone
}

// Next returns the successor of s. It returns false for StepDone and undefined steps.
func (s Step) Next() (Step, bool) {
	if !s.Valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

// ParseStep resolves a wire name to a Step.
func ParseStep(name string) (Step, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(b []byte) error {
	step, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = step
	return nil
}
