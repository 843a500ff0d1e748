package conversation

import (
	"fmt"
)

// Step is a position in the job posting conversation.
type Step uint8

const (
	StepInitial Step = iota
	StepCollectingTitle
	StepCollectingDescription
	StepCollectingRequirements
	StepCollectingSalary
	StepCollectingLocation
	StepReadyToCreate
	StepCompletion
)

var stepNames = [...]string{
	StepInitial:                "initial",
	StepCollectingTitle:        "collecting_title",
	StepCollectingDescription:  "collecting_description",
	StepCollectingRequirements: "collecting_requirements",
	StepCollectingSalary:       "collecting_salary",
	StepCollectingLocation:     "collecting_location",
	StepReadyToCreate:          "ready_to_create",
	StepCompletion:             "completion",
}

// Steps returns every step in order.
func Steps() []Step {
	out := make([]Step, len(stepNames))
	for i := range stepNames {
		out[i] = Step(i)
	}
	return out
}

// StepKeys returns the catalog keys of every step.
func StepKeys() []string {
	return stepNames[:]
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", uint8(s))
	}
	return stepNames[s]
}

// Valid reports whether s is a defined step.
func (s Step) Valid() bool {
	return int(s) < len(stepNames)
}

// Index is the position of s in the fixed order.
func (s Step) Index() int {
	return int(s)
}

// Next returns the following step. Completion is terminal and returns itself.
func (s Step) Next() Step {
	if s >= StepCompletion {
		return StepCompletion
	}
	return s + 1
}

// ParseStep is the inverse of String.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown conversation step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid conversation step %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Field names a collected value of the draft posting.
type Field string

const (
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldRequirements Field = "requirements"
	FieldSalary       Field = "salary"
	FieldLocation     Field = "location"
)

// collects maps the steps that store input to their field. Initial greets
// with the title question, so it stores the title as well.
var collects = map[Step]Field{
	StepInitial:                FieldTitle,
	StepCollectingTitle:        FieldTitle,
	StepCollectingDescription:  FieldDescription,
	StepCollectingRequirements: FieldRequirements,
	StepCollectingSalary:       FieldSalary,
	StepCollectingLocation:     FieldLocation,
}

// AllFields lists the draft fields in collection order.
func AllFields() []Field {
	return []Field{FieldTitle, FieldDescription, FieldRequirements, FieldSalary, FieldLocation}
}

// ParseField validates a field name.
func ParseField(name string) (Field, error) {
	switch f := Field(name); f {
	case FieldTitle, FieldDescription, FieldRequirements, FieldSalary, FieldLocation:
		return f, nil
	default:
		return "", fmt.Errorf("unknown field %q", name)
	}
}
