// Package application holds the mutable state of one in-progress application.
package application

import (
	"encoding/json"
	"fmt"
	"sync"

	"application-intake/internal/common/errors"
	"application-intake/internal/flow"
	"application-intake/internal/models"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// Patch is a partial update of one domain, keyed by the JSON field names of
// the domain record. A nil value clears the field.
type Patch map[string]interface{}

// State is the application context of one session. All updates are
// shallow merges scoped to one domain and are rejected once the application
// has been submitted.
type State struct {
	mu        sync.RWMutex
	data      models.ApplicationData
	submitted bool
	revision  uint64
}

// New returns an empty state.
func New() *State {
	return &State{data: models.NewApplicationData()}
}

// Reset clears all domains and the submitted flag.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = models.NewApplicationData()
	s.submitted = false
	s.revision++
}

// Snapshot returns a deep copy of the current data.
func (s *State) Snapshot() models.ApplicationData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// View returns a read-only, path addressable copy of the current data.
func (s *State) View() flow.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := flow.ViewOf(s.data)
	if err != nil {
		// ApplicationData contains only marshalable fields.
		panic(fmt.Sprintf("application: marshal state: %v", err))
	}
	return v
}

// Revision increases on every successful mutation.
func (s *State) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Role returns the selected role, empty when none was chosen.
func (s *State) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Role
}

// Submitted reports whether the application was finally submitted.
func (s *State) Submitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitted
}

// MarkSubmitted freezes the state.
func (s *State) MarkSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = true
	s.revision++
}

// mutate runs fn under the write lock unless the state is frozen.
func (s *State) mutate(fn func(d *models.ApplicationData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return errors.NewApplicationSubmittedError("")
	}
	if err := fn(&s.data); err != nil {
		return err
	}
	s.revision++
	return nil
}

// SelectRole sets the applicant role. Profiles of the other role are kept.
func (s *State) SelectRole(role models.Role) error {
	if !role.Valid() {
		return errors.NewInvalidPatchError(models.DomainRole, fmt.Errorf("unknown role %q", role))
	}
	return s.mutate(func(d *models.ApplicationData) error {
		d.Role = role
		return nil
	})
}

// UpdateFounder merges patch into the founder profile.
func (s *State) UpdateFounder(patch Patch) error {
	return s.mutate(func(d *models.ApplicationData) error {
		next := d.Founder
		next.Skills = append([]string(nil), d.Founder.Skills...)
		if err := merge(&next, patch); err != nil {
			return errors.NewInvalidPatchError(models.DomainFounder, err)
		}
		d.Founder = next
		return nil
	})
}

// UpdateInnovator merges patch into the innovator profile.
func (s *State) UpdateInnovator(patch Patch) error {
	return s.mutate(func(d *models.ApplicationData) error {
		next := d.Innovator
		next.Skills = append([]string(nil), d.Innovator.Skills...)
		if err := merge(&next, patch); err != nil {
			return errors.NewInvalidPatchError(models.DomainInnovator, err)
		}
		d.Innovator = next
		return nil
	})
}

// UpdateVenture merges patch into the venture. Nested track records merge
// key by key. Details of inactive tracks are kept.
func (s *State) UpdateVenture(patch Patch) error {
	return s.mutate(func(d *models.ApplicationData) error {
		next := d.Venture
		if err := merge(&next, patch); err != nil {
			return errors.NewInvalidPatchError(models.DomainVenture, err)
		}
		if next.Track != "" && !next.Track.Valid() {
			return errors.NewInvalidPatchError(models.DomainVenture, fmt.Errorf("unknown track %q", next.Track))
		}
		d.Venture = next
		return nil
	})
}

// SetUpload records the stored file reference for slot. An empty ref removes
// the slot.
func (s *State) SetUpload(slot, ref string) error {
	if slot == "" {
		return errors.NewInvalidPatchError(models.DomainUploads, fmt.Errorf("empty slot name"))
	}
	return s.mutate(func(d *models.ApplicationData) error {
		if ref == "" {
			delete(d.Uploads, slot)
			return nil
		}
		d.Uploads[slot] = ref
		return nil
	})
}

// UpdateUploads merges slot references; nil or empty values remove a slot.
func (s *State) UpdateUploads(patch Patch) error {
	refs := make(map[string]string, len(patch))
	for slot, raw := range patch {
		switch v := raw.(type) {
		case nil:
			refs[slot] = ""
		case string:
			refs[slot] = v
		default:
			return errors.NewInvalidPatchError(models.DomainUploads, fmt.Errorf("slot %q: expected string, got %T", slot, raw))
		}
	}
	return s.mutate(func(d *models.ApplicationData) error {
		for slot, ref := range refs {
			if ref == "" {
				delete(d.Uploads, slot)
			} else {
				d.Uploads[slot] = ref
			}
		}
		return nil
	})
}

// SetDeclaration records one consent answer.
func (s *State) SetDeclaration(id string, accepted bool) error {
	return s.UpdateDeclarations(Patch{id: accepted})
}

// UpdateDeclarations merges consent answers.
func (s *State) UpdateDeclarations(patch Patch) error {
	answers := make(map[string]bool, len(patch))
	for id, raw := range patch {
		if id == "" {
			return errors.NewInvalidPatchError(models.DomainDeclarations, fmt.Errorf("empty declaration id"))
		}
		v, ok := raw.(bool)
		if !ok {
			return errors.NewInvalidPatchError(models.DomainDeclarations, fmt.Errorf("%q: expected bool, got %T", id, raw))
		}
		answers[id] = v
	}
	return s.mutate(func(d *models.ApplicationData) error {
		for id, v := range answers {
			d.Declarations[id] = v
		}
		return nil
	})
}

// AddCoFounder appends a co-founder and returns its id. A caller supplied id
// is kept when it is unique.
func (s *State) AddCoFounder(c models.CoFounder) (string, error) {
	err := s.mutate(func(d *models.ApplicationData) error {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		for _, existing := range d.CoFounders {
			if existing.ID == c.ID {
				return errors.NewInvalidPatchError(models.DomainCoFounders, fmt.Errorf("duplicate co-founder id %q", c.ID))
			}
		}
		d.CoFounders = append(d.CoFounders, c)
		return nil
	})
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// UpdateCoFounder merges patch into the co-founder with id. The id itself
// cannot change.
func (s *State) UpdateCoFounder(id string, patch Patch) error {
	if raw, ok := patch["id"]; ok && raw != id {
		return errors.NewInvalidPatchError(models.DomainCoFounders, fmt.Errorf("co-founder id is immutable"))
	}
	return s.mutate(func(d *models.ApplicationData) error {
		for i := range d.CoFounders {
			if d.CoFounders[i].ID != id {
				continue
			}
			next := d.CoFounders[i]
			if err := merge(&next, patch); err != nil {
				return errors.NewInvalidPatchError(models.DomainCoFounders, err)
			}
			next.ID = id
			d.CoFounders[i] = next
			return nil
		}
		return errors.NewResourceNotFoundError("application state", fmt.Sprintf("co-founder %s", id))
	})
}

// RemoveCoFounder deletes the co-founder with id.
func (s *State) RemoveCoFounder(id string) error {
	return s.mutate(func(d *models.ApplicationData) error {
		for i := range d.CoFounders {
			if d.CoFounders[i].ID == id {
				d.CoFounders = append(d.CoFounders[:i:i], d.CoFounders[i+1:]...)
				return nil
			}
		}
		return errors.NewResourceNotFoundError("application state", fmt.Sprintf("co-founder %s", id))
	})
}

// Update dispatches patch to the domain update. The role domain expects
// {"role": "<role>"}; coFounders accepts {"add": {...}}, {"update": {"id": ..}}
// or {"remove": "<id>"}.
func (s *State) Update(domain string, patch Patch) error {
	switch domain {
	case models.DomainRole:
		raw, _ := patch[models.DomainRole].(string)
		role, err := models.ParseRole(raw)
		if err != nil {
			return errors.NewInvalidPatchError(domain, err)
		}
		return s.SelectRole(role)
	case models.DomainFounder:
		return s.UpdateFounder(patch)
	case models.DomainInnovator:
		return s.UpdateInnovator(patch)
	case models.DomainVenture:
		return s.UpdateVenture(patch)
	case models.DomainUploads:
		return s.UpdateUploads(patch)
	case models.DomainDeclarations:
		return s.UpdateDeclarations(patch)
	case models.DomainCoFounders:
		return s.updateCoFounders(patch)
	default:
		return errors.NewInvalidPatchError(domain, fmt.Errorf("unknown domain"))
	}
}

func (s *State) updateCoFounders(patch Patch) error {
	if raw, ok := patch["add"]; ok {
		var c models.CoFounder
		if err := merge(&c, asPatch(raw)); err != nil {
			return errors.NewInvalidPatchError(models.DomainCoFounders, err)
		}
		_, err := s.AddCoFounder(c)
		return err
	}
	if raw, ok := patch["update"]; ok {
		p := asPatch(raw)
		id, _ := p["id"].(string)
		return s.UpdateCoFounder(id, p)
	}
	if id, ok := patch["remove"].(string); ok {
		return s.RemoveCoFounder(id)
	}
	return errors.NewInvalidPatchError(models.DomainCoFounders, fmt.Errorf("expected add, update or remove"))
}

func asPatch(raw interface{}) Patch {
	switch v := raw.(type) {
	case Patch:
		return v
	case map[string]interface{}:
		return Patch(v)
	default:
		return Patch{}
	}
}

// Restore replaces the domains present in a stored draft document and
// leaves absent domains untouched. It returns the restored domain names.
// Domains that fail to decode are skipped and reported in the error.
func (s *State) Restore(doc json.RawMessage) ([]string, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.NewSchemaViolationError("draft data is not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, errors.NewSchemaViolationError("draft data is not an object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var restored []string
	var problems []error
	for _, domain := range models.Domains {
		r := root.Get(domain)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if err := restoreDomain(&s.data, domain, []byte(r.Raw)); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", domain, err))
			continue
		}
		restored = append(restored, domain)
	}
	s.revision++

	if len(problems) > 0 {
		return restored, errors.NewSchemaViolationError(joinErrors(problems))
	}
	return restored, nil
}

func restoreDomain(d *models.ApplicationData, domain string, raw []byte) error {
	switch domain {
	case models.DomainRole:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		role, err := models.ParseRole(v)
		if err != nil {
			return err
		}
		d.Role = role
	case models.DomainFounder:
		var v models.FounderProfile
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		d.Founder = v
	case models.DomainInnovator:
		var v models.InnovatorProfile
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		d.Innovator = v
	case models.DomainVenture:
		var v models.Venture
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if v.Track != "" && !v.Track.Valid() {
			return fmt.Errorf("unknown track %q", v.Track)
		}
		d.Venture = v
	case models.DomainCoFounders:
		var v []models.CoFounder
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		for i := range v {
			if v[i].ID == "" {
				v[i].ID = uuid.NewString()
			}
		}
		d.CoFounders = v
	case models.DomainUploads:
		v := map[string]string{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		d.Uploads = v
	case models.DomainDeclarations:
		v := map[string]bool{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		d.Declarations = v
	}
	return nil
}

// merge decodes patch onto target. Fields absent from patch are kept, lists
// and maps in patch replace the current value, and unknown keys are errors.
func merge(target interface{}, patch Patch) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		ZeroFields:  true,
		Result:      target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(patch))
}

func joinErrors(errs []error) string {
	out := ""
	for i, err := range errs {
		if i > 0 {
			out += "; "
		}
		out += err.Error()
	}
	return out
}
