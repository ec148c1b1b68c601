package engine

import (
	"application-intake/internal/application"
	"application-intake/internal/models"
)

// The update methods forward to the application state. Branch changes they
// cause are visible on the next ActiveSteps call.

func (e *Engine) SelectRole(role models.Role) error {
	return e.state.SelectRole(role)
}

func (e *Engine) UpdateFounder(patch application.Patch) error {
	return e.state.UpdateFounder(patch)
}

func (e *Engine) UpdateInnovator(patch application.Patch) error {
	return e.state.UpdateInnovator(patch)
}

func (e *Engine) UpdateVenture(patch application.Patch) error {
	return e.state.UpdateVenture(patch)
}

func (e *Engine) UpdateUploads(patch application.Patch) error {
	return e.state.UpdateUploads(patch)
}

func (e *Engine) SetUpload(slot, ref string) error {
	return e.state.SetUpload(slot, ref)
}

func (e *Engine) UpdateDeclarations(patch application.Patch) error {
	return e.state.UpdateDeclarations(patch)
}

func (e *Engine) SetDeclaration(id string, accepted bool) error {
	return e.state.SetDeclaration(id, accepted)
}

func (e *Engine) AddCoFounder(c models.CoFounder) (string, error) {
	return e.state.AddCoFounder(c)
}

func (e *Engine) UpdateCoFounder(id string, patch application.Patch) error {
	return e.state.UpdateCoFounder(id, patch)
}

func (e *Engine) RemoveCoFounder(id string) error {
	return e.state.RemoveCoFounder(id)
}

// Update applies a patch to the named domain.
func (e *Engine) Update(domain string, patch application.Patch) error {
	return e.state.Update(domain, patch)
}
