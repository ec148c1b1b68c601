package flow

import (
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Rule is a canonical validation rule identifier.
type Rule string

const (
	RuleRequired    Rule = "required"
	RuleNonEmptySet Rule = "nonEmptySet"
	RuleMinChars    Rule = "minChars"
	RuleMaxChars    Rule = "maxChars"
	RuleIsTrue      Rule = "isTrue"
	RuleOneOf       Rule = "oneOf"
)

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	switch r {
	case RuleRequired, RuleNonEmptySet, RuleMinChars, RuleMaxChars, RuleIsTrue, RuleOneOf:
		return true
	}
	return false
}

// Validator is a declarative check of one field path.
type Validator struct {
	Field   string   `yaml:"field" json:"field"`
	Rule    Rule     `yaml:"rule" json:"rule"`
	Min     int      `yaml:"min,omitempty" json:"min,omitempty"`
	Max     int      `yaml:"max,omitempty" json:"max,omitempty"`
	Values  []string `yaml:"values,omitempty" json:"values,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// Issue is a failed validator.
type Issue struct {
	Field   string `json:"field"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// Check evaluates the validator against v.
func (val Validator) Check(v View) bool {
	r := v.Lookup(val.Field)
	switch val.Rule {
	case RuleRequired:
		return NonEmpty(r)
	case RuleNonEmptySet:
		return r.IsArray() && len(r.Array()) > 0
	case RuleMinChars:
		return utf8.RuneCountInString(stringValue(r)) >= val.Min
	case RuleMaxChars:
		return utf8.RuneCountInString(stringValue(r)) <= val.Max
	case RuleIsTrue:
		return r.Type == gjson.True
	case RuleOneOf:
		return contains(val.Values, r.String())
	default:
		return false
	}
}

func (val Validator) issue() Issue {
	msg := val.Message
	if msg == "" {
		switch val.Rule {
		case RuleMinChars:
			msg = fmt.Sprintf("must be at least %d characters", val.Min)
		case RuleMaxChars:
			msg = fmt.Sprintf("must be at most %d characters", val.Max)
		case RuleIsTrue:
			msg = "must be accepted"
		case RuleNonEmptySet:
			msg = "select at least one option"
		case RuleOneOf:
			msg = "is not an allowed option"
		default:
			msg = "is required"
		}
	}
	return Issue{Field: val.Field, Rule: val.Rule, Message: msg}
}

func stringValue(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.Raw
}

// Validators compiles the step props into validator descriptors. The set
// depends on the step type only; list, upload, intro and review steps never
// gate unless extra validators are attached.
func (s Step) Validators() []Validator {
	var out []Validator
	switch s.Type {
	case StepForm:
		for _, in := range s.Props.Inputs {
			if in.Required {
				out = append(out, Validator{Field: in.Field, Rule: RuleRequired})
			}
		}
	case StepOption:
		if sel := s.Props.Selection; sel != nil {
			if sel.Multi {
				out = append(out, Validator{Field: sel.Field, Rule: RuleNonEmptySet})
			} else {
				out = append(out, Validator{Field: sel.Field, Rule: RuleRequired})
				if len(sel.Options) > 0 {
					values := make([]string, len(sel.Options))
					for i, o := range sel.Options {
						values[i] = o.Value
					}
					out = append(out, Validator{Field: sel.Field, Rule: RuleOneOf, Values: values})
				}
			}
		}
	case StepEssay:
		for _, q := range s.Props.Questions {
			limit := q.MaxChars
			if limit <= 0 {
				limit = MaxTextChars
			}
			out = append(out,
				Validator{Field: q.Field, Rule: RuleMinChars, Min: q.MinChars},
				Validator{Field: q.Field, Rule: RuleMaxChars, Max: limit},
			)
		}
	case StepConsent:
		for _, item := range s.Props.Items {
			out = append(out, Validator{Field: DeclarationPath(item.ID), Rule: RuleIsTrue})
		}
	}
	return append(out, s.Props.Validators...)
}

// Check returns every failing validator of s against v.
func Check(s Step, v View) []Issue {
	var issues []Issue
	for _, val := range s.Validators() {
		if !val.Check(v) {
			issues = append(issues, val.issue())
		}
	}
	return issues
}

// CanAdvance reports whether s passes all of its validators.
func CanAdvance(s Step, v View) bool {
	for _, val := range s.Validators() {
		if !val.Check(v) {
			return false
		}
	}
	return true
}

// DeclarationPath is the field path of a consent item.
func DeclarationPath(id string) string {
	return "declarations." + id
}
