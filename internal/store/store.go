// Package store persists one application draft per user. Saves are full
// snapshot overwrites; the most recent accepted write wins.
package store

import (
	"context"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/models"
)

// DraftStore is implemented by every backend.
type DraftStore interface {
	// Get returns the stored draft or (nil, nil) when there is none.
	Get(ctx context.Context, userID string) (*models.Draft, error)
	// Save overwrites the user's draft with req.
	Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error)
	Ping(ctx context.Context) error
	Name() string
}

// Options are shared by all backends.
type Options struct {
	// StrictVersions rejects saves whose version is not greater than the
	// stored version.
	StrictVersions bool
	Now            func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// apply computes the draft that results from writing req over existing.
func apply(existing *models.Draft, req *models.SaveRequest, opts Options) (*models.Draft, error) {
	if req.UserID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}
	if existing != nil {
		if existing.Submitted {
			return nil, errors.NewApplicationSubmittedError(req.UserID)
		}
		if opts.StrictVersions && req.Version <= existing.Version {
			return nil, errors.NewStaleWriteError(req.UserID, existing.Version, req.Version)
		}
	}

	now := opts.now()
	draft := &models.Draft{
		UserID:    req.UserID,
		Data:      append([]byte(nil), req.Data...),
		Submitted: req.Submit,
		Version:   req.Version,
		UpdatedAt: now,
	}
	if req.Submit {
		draft.SubmittedAt = &now
	}
	return draft, nil
}

func cloneDraft(d *models.Draft) *models.Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Data = append([]byte(nil), d.Data...)
	if d.SubmittedAt != nil {
		t := *d.SubmittedAt
		out.SubmittedAt = &t
	}
	return &out
}
