package flow

import (
	"errors"
	"fmt"

	"application-intake/internal/models"
)

var (
	ErrNoAnchorStep  = errors.New("flow has no unconditioned step")
	ErrDuplicateStep = errors.New("duplicate step id")
	ErrEmptyFlow     = errors.New("flow has no steps")
)

// Flow is an ordered step definition for one role.
type Flow struct {
	ID    string
	Role  models.Role
	Steps []Step

	index map[string]int
}

// Validate reports every structural problem of the flow.
func (f *Flow) Validate() error {
	var errs []error
	if f.ID == "" {
		errs = append(errs, errors.New("flow id is empty"))
	}
	if !f.Role.Valid() {
		errs = append(errs, fmt.Errorf("flow %q: unknown role %q", f.ID, f.Role))
	}
	if len(f.Steps) == 0 {
		errs = append(errs, ErrEmptyFlow)
	}

	seen := make(map[string]bool, len(f.Steps))
	anchored := false
	for i, s := range f.Steps {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("step #%d: id is empty", i))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("step %q: %w", s.ID, ErrDuplicateStep))
		}
		seen[s.ID] = true

		if s.SectionID == "" {
			errs = append(errs, fmt.Errorf("step %q: section is empty", s.ID))
		}
		if !s.Type.Valid() {
			errs = append(errs, fmt.Errorf("step %q: unknown type %q", s.ID, s.Type))
		}
		if !s.Conditional() {
			anchored = true
		}
		errs = append(errs, validateProps(s)...)
	}
	if len(f.Steps) > 0 && !anchored {
		errs = append(errs, ErrNoAnchorStep)
	}
	return errors.Join(errs...)
}

func validateProps(s Step) []error {
	var errs []error
	switch s.Type {
	case StepForm:
		if len(s.Props.Inputs) == 0 {
			errs = append(errs, fmt.Errorf("step %q: form has no inputs", s.ID))
		}
		for _, in := range s.Props.Inputs {
			if in.Field == "" {
				errs = append(errs, fmt.Errorf("step %q: input %q has no field", s.ID, in.Label))
			}
		}
	case StepOption:
		if s.Props.Selection == nil || s.Props.Selection.Field == "" {
			errs = append(errs, fmt.Errorf("step %q: option step has no selection field", s.ID))
		}
	case StepEssay:
		if len(s.Props.Questions) == 0 {
			errs = append(errs, fmt.Errorf("step %q: essay has no questions", s.ID))
		}
		for _, q := range s.Props.Questions {
			if q.Field == "" {
				errs = append(errs, fmt.Errorf("step %q: question %q has no field", s.ID, q.Label))
			}
			if q.MinChars < 0 {
				errs = append(errs, fmt.Errorf("step %q: question %q has negative minChars", s.ID, q.Label))
			}
			if q.MaxChars < 0 || q.MaxChars > MaxTextChars {
				errs = append(errs, fmt.Errorf("step %q: question %q maxChars must be within 0..%d", s.ID, q.Label, MaxTextChars))
			} else if q.MaxChars > 0 && q.MaxChars < q.MinChars {
				errs = append(errs, fmt.Errorf("step %q: question %q has maxChars below minChars", s.ID, q.Label))
			}
		}
	case StepConsent:
		if len(s.Props.Items) == 0 {
			errs = append(errs, fmt.Errorf("step %q: consent has no items", s.ID))
		}
		for _, item := range s.Props.Items {
			if item.ID == "" {
				errs = append(errs, fmt.Errorf("step %q: consent item %q has no id", s.ID, item.Label))
			}
		}
	case StepList:
		if s.Props.Collection == "" {
			errs = append(errs, fmt.Errorf("step %q: list step has no collection", s.ID))
		}
	}
	for _, v := range s.Props.Validators {
		if v.Field == "" {
			errs = append(errs, fmt.Errorf("step %q: validator has no field", s.ID))
		}
		if !v.Rule.Valid() {
			errs = append(errs, fmt.Errorf("step %q: unknown validator rule %q", s.ID, v.Rule))
		}
	}
	return errs
}

// Step looks a step up by id, regardless of its condition.
func (f *Flow) Step(id string) (Step, bool) {
	if f.index == nil {
		f.reindex()
	}
	i, ok := f.index[id]
	if !ok {
		return Step{}, false
	}
	return f.Steps[i], true
}

func (f *Flow) reindex() {
	f.index = make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		f.index[s.ID] = i
	}
}

// Active filters the flow to the steps whose condition holds against v, in
// declared order. A condition that panics excludes its step and is returned
// as a *ConditionError.
func (f *Flow) Active(v View) ([]Step, []error) {
	active := make([]Step, 0, len(f.Steps))
	var faults []error
	for _, s := range f.Steps {
		included, err := evaluate(s, v)
		if err != nil {
			faults = append(faults, err)
			continue
		}
		if included {
			active = append(active, s)
		}
	}
	return active, faults
}

// IndexOf returns the position of id in steps or -1.
func IndexOf(steps []Step, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// SectionProgress returns the percentage position of the step at index
// within its section, counted over steps only: (1 + position) / count.
// The result is in (0, 100] for a valid index.
func SectionProgress(steps []Step, index int) float64 {
	if index < 0 || index >= len(steps) {
		return 0
	}
	section := steps[index].SectionID
	pos, count := 0, 0
	for i, s := range steps {
		if s.SectionID != section {
			continue
		}
		if i < index {
			pos++
		}
		count++
	}
	return float64(pos+1) / float64(count) * 100
}
