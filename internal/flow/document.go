package flow

import (
	"errors"
	"fmt"

	"application-intake/internal/models"
	"application-intake/pkg/registry"
)

// ErrOpaqueCondition is returned when a flow carries a condition that has no
// document form.
var ErrOpaqueCondition = errors.New("condition cannot be serialised")

// FromDocument converts and validates a flow document.
func FromDocument(doc *registry.FlowDocument) (*Flow, error) {
	if doc.ID == "" {
		return nil, errors.New("flow document has no id")
	}
	role, err := models.ParseRole(doc.Role)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", doc.ID, err)
	}

	b := New(doc.ID).ForRole(role)
	for _, sd := range doc.Steps {
		b.Step(stepFromDocument(sd))
	}
	f, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", doc.ID, err)
	}
	return f, nil
}

func stepFromDocument(sd registry.StepDocument) Step {
	s := Step{
		ID:        sd.ID,
		SectionID: sd.Section,
		Type:      StepType(sd.Type),
		Title:     sd.Title,
		Subtitle:  sd.Subtitle,
		Props:     Props{Collection: sd.Collection},
	}
	for _, in := range sd.Inputs {
		s.Props.Inputs = append(s.Props.Inputs, FormInput{
			Label: in.Label, Field: in.Field, Required: in.Required, Kind: InputKind(in.Kind),
		})
	}
	for _, it := range sd.Items {
		s.Props.Items = append(s.Props.Items, ConsentItem{ID: it.ID, Label: it.Label})
	}
	for _, q := range sd.Questions {
		s.Props.Questions = append(s.Props.Questions, EssayQuestion{Label: q.Label, Field: q.Field, MinChars: q.MinChars, MaxChars: q.MaxChars})
	}
	if sel := sd.Selection; sel != nil {
		out := &Selection{Field: sel.Field, Multi: sel.Multi}
		for _, o := range sel.Options {
			out.Options = append(out.Options, Option{Value: o.Value, Label: o.Label})
		}
		s.Props.Selection = out
	}
	for _, sl := range sd.Slots {
		s.Props.Slots = append(s.Props.Slots, UploadSlot{Name: sl.Name, Label: sl.Label, Required: sl.Required})
	}
	for _, v := range sd.Validators {
		s.Props.Validators = append(s.Props.Validators, Validator{
			Field: v.Field, Rule: Rule(v.Rule), Min: v.Min, Max: v.Max, Values: v.Values, Message: v.Message,
		})
	}
	if w := sd.When; w != nil {
		s.Condition = When{Field: w.Field, Equals: w.Equals, In: w.In, NotIn: w.NotIn, Exists: w.Exists}
	}
	return s
}

// ToDocument converts f into its document form. Only When conditions can be
// represented; any other condition yields ErrOpaqueCondition.
func ToDocument(f *Flow) (*registry.FlowDocument, error) {
	doc := &registry.FlowDocument{Version: "1", ID: f.ID, Role: string(f.Role)}
	for _, s := range f.Steps {
		sd := registry.StepDocument{
			ID:         s.ID,
			Section:    s.SectionID,
			Type:       string(s.Type),
			Title:      s.Title,
			Subtitle:   s.Subtitle,
			Collection: s.Props.Collection,
		}
		if s.Condition != nil {
			w, ok := s.Condition.(When)
			if !ok {
				return nil, fmt.Errorf("step %q: %w", s.ID, ErrOpaqueCondition)
			}
			sd.When = &registry.WhenDocument{Field: w.Field, Equals: w.Equals, In: w.In, NotIn: w.NotIn, Exists: w.Exists}
		}
		for _, in := range s.Props.Inputs {
			sd.Inputs = append(sd.Inputs, registry.InputDocument{
				Label: in.Label, Field: in.Field, Required: in.Required, Kind: string(in.Kind),
			})
		}
		for _, it := range s.Props.Items {
			sd.Items = append(sd.Items, registry.ItemDocument{ID: it.ID, Label: it.Label})
		}
		for _, q := range s.Props.Questions {
			sd.Questions = append(sd.Questions, registry.QuestionDocument{Label: q.Label, Field: q.Field, MinChars: q.MinChars, MaxChars: q.MaxChars})
		}
		if sel := s.Props.Selection; sel != nil {
			out := &registry.SelectionDocument{Field: sel.Field, Multi: sel.Multi}
			for _, o := range sel.Options {
				out.Options = append(out.Options, registry.OptionDocument{Value: o.Value, Label: o.Label})
			}
			sd.Selection = out
		}
		for _, sl := range s.Props.Slots {
			sd.Slots = append(sd.Slots, registry.SlotDocument{Name: sl.Name, Label: sl.Label, Required: sl.Required})
		}
		for _, v := range s.Props.Validators {
			sd.Validators = append(sd.Validators, registry.ValidatorDocument{
				Field: v.Field, Rule: string(v.Rule), Min: v.Min, Max: v.Max, Values: v.Values, Message: v.Message,
			})
		}
		doc.Steps = append(doc.Steps, sd)
	}
	return doc, nil
}

// LoadFile reads and validates one flow file.
func LoadFile(path string) (*Flow, error) {
	doc, err := registry.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// LoadDir reads and validates every flow file in dir.
func LoadDir(dir string) ([]*Flow, error) {
	docs, err := registry.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	flows := make([]*Flow, 0, len(docs))
	for _, doc := range docs {
		f, err := FromDocument(doc)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, nil
}
