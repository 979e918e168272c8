package chatbot

import "fmt"

// Step selects which handler interprets the next user action.
type Step int

const (
	StepInitial Step = iota
	StepGetOwner
	StepGetPet
	StepGetPetSelection
	StepGetDate
	StepGetTime
	StepGetService
	StepConfirm
)

var stepNames = [...]string{
	StepInitial:         "initial",
	StepGetOwner:        "get_owner",
	StepGetPet:          "get_pet",
	StepGetPetSelection: "get_pet_selection",
	StepGetDate:         "get_date",
	StepGetTime:         "get_time",
	StepGetService:      "get_service",
	StepConfirm:         "confirm",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// AcceptsText reports whether free-text input is enabled in this step.
func (s Step) AcceptsText() bool {
	switch s {
	case StepGetOwner, StepGetPet:
		return true
	case StepInitial, StepGetPetSelection, StepGetDate, StepGetTime, StepGetService, StepConfirm:
		return false
	default:
		return false
	}
}

// ParseStep maps a wire name back to its Step.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stepNames) {
		return nil, fmt.Errorf("invalid step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
