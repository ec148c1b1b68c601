// Package flow describes intake flows: ordered, sectioned steps that are
// conditionally included depending on the application state.
package flow

// StepType identifies how a step is rendered and validated.
type StepType string

const (
	StepIntro   StepType = "intro"
	StepForm    StepType = "form"
	StepOption  StepType = "option"
	StepEssay   StepType = "essay"
	StepList    StepType = "list"
	StepUpload  StepType = "upload"
	StepReview  StepType = "review"
	StepConsent StepType = "consent"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepIntro, StepForm, StepOption, StepEssay, StepList, StepUpload, StepReview, StepConsent:
		return true
	}
	return false
}

// InputKind hints the widget used for a form input.
type InputKind string

const (
	InputText     InputKind = "text"
	InputEmail    InputKind = "email"
	InputPhone    InputKind = "phone"
	InputURL      InputKind = "url"
	InputDate     InputKind = "date"
	InputNumber   InputKind = "number"
	InputTextarea InputKind = "textarea"
	InputSelect   InputKind = "select"
	InputCheckbox InputKind = "checkbox"
)

// FormInput is one field of a form step.
type FormInput struct {
	Label    string    `yaml:"label" json:"label"`
	Field    string    `yaml:"field" json:"field"`
	Required bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Kind     InputKind `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// ConsentItem is an acknowledgement stored under declarations.<ID>.
type ConsentItem struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// EssayQuestion is a free text answer with a length range. A zero MaxChars
// means MaxTextChars.
type EssayQuestion struct {
	Label    string `yaml:"label" json:"label"`
	Field    string `yaml:"field" json:"field"`
	MinChars int    `yaml:"minChars,omitempty" json:"minChars,omitempty"`
	MaxChars int    `yaml:"maxChars,omitempty" json:"maxChars,omitempty"`
}

// Option is one choice of an option step.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Selection designates the field an option step writes to.
type Selection struct {
	Field   string   `yaml:"field" json:"field"`
	Multi   bool     `yaml:"multi,omitempty" json:"multi,omitempty"`
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// UploadSlot names a file slot in the uploads map.
type UploadSlot struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// Props is the type specific configuration of a step.
type Props struct {
	Inputs     []FormInput     `json:"inputs,omitempty"`
	Items      []ConsentItem   `json:"items,omitempty"`
	Questions  []EssayQuestion `json:"questions,omitempty"`
	Selection  *Selection      `json:"selection,omitempty"`
	Slots      []UploadSlot    `json:"slots,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Validators []Validator     `json:"validators,omitempty"`
}

// Step is one screen of a flow. Steps are values; the modifiers below return
// a changed copy.
type Step struct {
	ID        string    `json:"id"`
	SectionID string    `json:"sectionId"`
	Type      StepType  `json:"type"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Props     Props     `json:"props"`
	Condition Condition `json:"-"`
}

// Conditional reports whether the step carries an inclusion condition.
func (s Step) Conditional() bool {
	return s.Condition != nil
}

// When returns a copy of s included only while c holds.
func (s Step) When(c Condition) Step {
	s.Condition = c
	return s
}

// WithSubtitle returns a copy of s with the subtitle set.
func (s Step) WithSubtitle(subtitle string) Step {
	s.Subtitle = subtitle
	return s
}

// WithValidators returns a copy of s with extra validators attached.
func (s Step) WithValidators(v ...Validator) Step {
	s.Props.Validators = append(append([]Validator(nil), s.Props.Validators...), v...)
	return s
}

// Intro builds an informational step.
func Intro(id, section, title string) Step {
	return Step{ID: id, SectionID: section, Type: StepIntro, Title: title}
}

// Form builds a form step.
func Form(id, section, title string, inputs ...FormInput) Step {
	return Step{ID: id, SectionID: section, Type: StepForm, Title: title, Props: Props{Inputs: inputs}}
}

// Choice builds an option step over sel.
func Choice(id, section, title string, sel Selection) Step {
	return Step{ID: id, SectionID: section, Type: StepOption, Title: title, Props: Props{Selection: &sel}}
}

// Essay builds an essay step.
func Essay(id, section, title string, questions ...EssayQuestion) Step {
	return Step{ID: id, SectionID: section, Type: StepEssay, Title: title, Props: Props{Questions: questions}}
}

// List builds a step editing the list stored at collection.
func List(id, section, title, collection string) Step {
	return Step{ID: id, SectionID: section, Type: StepList, Title: title, Props: Props{Collection: collection}}
}

// Upload builds an upload step.
func Upload(id, section, title string, slots ...UploadSlot) Step {
	return Step{ID: id, SectionID: section, Type: StepUpload, Title: title, Props: Props{Slots: slots}}
}

// Consent builds a consent step.
func Consent(id, section, title string, items ...ConsentItem) Step {
	return Step{ID: id, SectionID: section, Type: StepConsent, Title: title, Props: Props{Items: items}}
}

// Review builds the review step.
func Review(id, section, title string) Step {
	return Step{ID: id, SectionID: section, Type: StepReview, Title: title}
}

// Required is a mandatory form input.
func Required(label, field string, kind InputKind) FormInput {
	return FormInput{Label: label, Field: field, Required: true, Kind: kind}
}

// Optional is a form input that does not gate the step.
func Optional(label, field string, kind InputKind) FormInput {
	return FormInput{Label: label, Field: field, Kind: kind}
}
