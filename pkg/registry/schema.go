// pkg/registry/schema.go
package registry

// FlowDocument is the file representation of an intake flow.
type FlowDocument struct {
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	LastUpdated string         `yaml:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
	ID          string         `yaml:"id" json:"id"`
	Role        string         `yaml:"role" json:"role"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepDocument `yaml:"steps" json:"steps"`
}

type StepDocument struct {
	ID         string              `yaml:"id" json:"id"`
	Section    string              `yaml:"section" json:"section"`
	Type       string              `yaml:"type" json:"type"`
	Title      string              `yaml:"title" json:"title"`
	Subtitle   string              `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	When       *WhenDocument       `yaml:"when,omitempty" json:"when,omitempty"`
	Inputs     []InputDocument     `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Items      []ItemDocument      `yaml:"items,omitempty" json:"items,omitempty"`
	Questions  []QuestionDocument  `yaml:"questions,omitempty" json:"questions,omitempty"`
	Selection  *SelectionDocument  `yaml:"selection,omitempty" json:"selection,omitempty"`
	Slots      []SlotDocument      `yaml:"slots,omitempty" json:"slots,omitempty"`
	Collection string              `yaml:"collection,omitempty" json:"collection,omitempty"`
	Validators []ValidatorDocument `yaml:"validators,omitempty" json:"validators,omitempty"`
}

type WhenDocument struct {
	Field  string   `yaml:"field" json:"field"`
	Equals string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	In     []string `yaml:"in,omitempty" json:"in,omitempty"`
	NotIn  []string `yaml:"notIn,omitempty" json:"notIn,omitempty"`
	Exists *bool    `yaml:"exists,omitempty" json:"exists,omitempty"`
}

type InputDocument struct {
	Label    string `yaml:"label" json:"label"`
	Field    string `yaml:"field" json:"field"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Kind     string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

type ItemDocument struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type QuestionDocument struct {
	Label    string `yaml:"label" json:"label"`
	Field    string `yaml:"field" json:"field"`
	MinChars int    `yaml:"minChars,omitempty" json:"minChars,omitempty"`
	MaxChars int    `yaml:"maxChars,omitempty" json:"maxChars,omitempty"`
}

type OptionDocument struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type SelectionDocument struct {
	Field   string           `yaml:"field" json:"field"`
	Multi   bool             `yaml:"multi,omitempty" json:"multi,omitempty"`
	Options []OptionDocument `yaml:"options,omitempty" json:"options,omitempty"`
}

type SlotDocument struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

type ValidatorDocument struct {
	Field   string   `yaml:"field" json:"field"`
	Rule    string   `yaml:"rule" json:"rule"`
	Min     int      `yaml:"min,omitempty" json:"min,omitempty"`
	Max     int      `yaml:"max,omitempty" json:"max,omitempty"`
	Values  []string `yaml:"values,omitempty" json:"values,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}
