package flow

import (
	"fmt"
)

// Condition decides whether a step is part of the active sequence. It must
// be pure: no side effects, same answer for the same View.
type Condition interface {
	Holds(v View) bool
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(v View) bool

func (f ConditionFunc) Holds(v View) bool { return f(v) }

// When is the declarative condition used by YAML flow files. All populated
// clauses must hold; with no clause set the field must be non-empty.
type When struct {
	Field  string   `yaml:"field" json:"field"`
	Equals string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	In     []string `yaml:"in,omitempty" json:"in,omitempty"`
	NotIn  []string `yaml:"notIn,omitempty" json:"notIn,omitempty"`
	Exists *bool    `yaml:"exists,omitempty" json:"exists,omitempty"`
}

func (w When) Holds(v View) bool {
	r := v.Lookup(w.Field)
	val := r.String()
	matched := false

	if w.Exists != nil {
		if NonEmpty(r) != *w.Exists {
			return false
		}
		matched = true
	}
	if w.Equals != "" {
		if val != w.Equals {
			return false
		}
		matched = true
	}
	if len(w.In) > 0 {
		if !contains(w.In, val) {
			return false
		}
		matched = true
	}
	if len(w.NotIn) > 0 {
		if contains(w.NotIn, val) {
			return false
		}
		matched = true
	}
	if !matched {
		return NonEmpty(r)
	}
	return true
}

// FieldEquals holds when the value at field equals value.
func FieldEquals(field, value string) Condition {
	return When{Field: field, Equals: value}
}

// FieldIn holds when the value at field is one of values.
func FieldIn(field string, values ...string) Condition {
	return When{Field: field, In: values}
}

// All holds when every condition holds.
func All(conds ...Condition) Condition {
	return ConditionFunc(func(v View) bool {
		for _, c := range conds {
			if !c.Holds(v) {
				return false
			}
		}
		return true
	})
}

// Any holds when at least one condition holds.
func Any(conds ...Condition) Condition {
	return ConditionFunc(func(v View) bool {
		for _, c := range conds {
			if c.Holds(v) {
				return true
			}
		}
		return false
	})
}

// ConditionError reports a condition that panicked during evaluation.
type ConditionError struct {
	StepID string
	Value  interface{}
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition of step %q panicked: %v", e.StepID, e.Value)
}

// evaluate runs the step condition, converting a panic into an error.
func evaluate(s Step, v View) (included bool, err error) {
	if s.Condition == nil {
		return true, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			included = false
			err = &ConditionError{StepID: s.ID, Value: rec}
		}
	}()
	return s.Condition.Holds(v), nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
