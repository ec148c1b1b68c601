// Package submission fires downstream triggers once an application has been
// stored as submitted. Hook failures are reported but never undo the submit.
package submission

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"application-intake/internal/common/logger"
	"application-intake/internal/common/metrics"
	"application-intake/internal/models"
)

// Submission is the decoded view of a submitted draft.
type Submission struct {
	UserID      string
	Version     int64
	SubmittedAt time.Time
	Application models.ApplicationData
}

// FromDraft decodes a submitted draft.
func FromDraft(d *models.Draft) (*Submission, error) {
	if d == nil || !d.Submitted {
		return nil, fmt.Errorf("draft is not submitted")
	}
	app := models.NewApplicationData()
	if !d.Empty() {
		if err := json.Unmarshal(d.Data, &app); err != nil {
			return nil, fmt.Errorf("decode submitted application: %w", err)
		}
	}
	s := &Submission{UserID: d.UserID, Version: d.Version, Application: app}
	if d.SubmittedAt != nil {
		s.SubmittedAt = *d.SubmittedAt
	} else {
		s.SubmittedAt = d.UpdatedAt
	}
	return s, nil
}

// ApplicantName returns the display name of the active profile.
func (s *Submission) ApplicantName() string {
	if a := s.Application.Applicant(); a != nil {
		return a.DisplayName()
	}
	return ""
}

// ApplicantEmail returns the contact email of the active profile.
func (s *Submission) ApplicantEmail() string {
	if a := s.Application.Applicant(); a != nil {
		return a.ContactEmail()
	}
	return ""
}

// Summary is the flat event shape shared by the process, topic and index hooks.
func (s *Submission) Summary() map[string]interface{} {
	summary := map[string]interface{}{
		"userId":         s.UserID,
		"role":           string(s.Application.Role),
		"version":        s.Version,
		"submittedAt":    s.SubmittedAt.UTC().Format(time.RFC3339),
		"applicantName":  s.ApplicantName(),
		"applicantEmail": s.ApplicantEmail(),
	}
	if s.Application.Role == models.RoleFounder {
		summary["track"] = string(s.Application.Venture.Track)
		summary["ventureName"] = s.Application.Venture.Name
		summary["coFounderCount"] = len(s.Application.CoFounders)
	}
	return summary
}

// Hook is one downstream trigger.
type Hook interface {
	Name() string
	Fire(ctx context.Context, s *Submission) error
}

// Dispatcher runs every hook for a submitted draft.
type Dispatcher struct {
	hooks   []Hook
	timeout time.Duration
	logger  logger.Logger
}

func NewDispatcher(timeout time.Duration, log logger.Logger, hooks ...Hook) *Dispatcher {
	return &Dispatcher{
		hooks:   hooks,
		timeout: timeout,
		logger:  logger.Component(log, "submission"),
	}
}

// Hooks returns the configured hook names.
func (d *Dispatcher) Hooks() []string {
	names := make([]string, len(d.hooks))
	for i, h := range d.hooks {
		names[i] = h.Name()
	}
	return names
}

// Dispatch fires every hook in order. Each hook gets its own timeout and a
// failing hook does not stop the others. The joined hook errors are returned
// for the caller to log.
func (d *Dispatcher) Dispatch(ctx context.Context, draft *models.Draft) error {
	if len(d.hooks) == 0 {
		return nil
	}
	s, err := FromDraft(draft)
	if err != nil {
		return err
	}

	var errs []error
	for _, h := range d.hooks {
		if err := d.fire(ctx, h, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

func (d *Dispatcher) fire(ctx context.Context, h Hook, s *Submission) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := h.Fire(ctx, s)
	fields := map[string]interface{}{
		"hook":     h.Name(),
		"userId":   s.UserID,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		metrics.HooksTotal.WithLabelValues(h.Name(), metrics.OutcomeFailure).Inc()
		d.logger.WithError(err).Error("submission hook failed", fields)
		return err
	}
	metrics.HooksTotal.WithLabelValues(h.Name(), metrics.OutcomeSuccess).Inc()
	d.logger.Info("submission hook fired", fields)
	return nil
}
