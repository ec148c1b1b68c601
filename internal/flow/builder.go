package flow

import (
	"application-intake/internal/models"
)

// Builder assembles a Flow fluently:
//
//	f, err := flow.New("founder").
//		ForRole(models.RoleFounder).
//		Step(flow.Intro("welcome", "welcome", "Welcome")).
//		Build()
type Builder struct {
	flow *Flow
}

// New starts a flow definition. It panics on an empty id.
func New(id string) *Builder {
	if id == "" {
		panic("flow: empty flow id")
	}
	return &Builder{flow: &Flow{ID: id}}
}

// ForRole sets the role served by the flow.
func (b *Builder) ForRole(role models.Role) *Builder {
	b.flow.Role = role
	return b
}

// Step appends steps in order.
func (b *Builder) Step(steps ...Step) *Builder {
	b.flow.Steps = append(b.flow.Steps, steps...)
	return b
}

// Build validates and returns the flow.
func (b *Builder) Build() (*Flow, error) {
	f := &Flow{
		ID:    b.flow.ID,
		Role:  b.flow.Role,
		Steps: append([]Step(nil), b.flow.Steps...),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.reindex()
	return f, nil
}

// MustBuild is Build for static definitions; it panics on an invalid flow.
func (b *Builder) MustBuild() *Flow {
	f, err := b.Build()
	if err != nil {
		panic("flow: " + err.Error())
	}
	return f
}
