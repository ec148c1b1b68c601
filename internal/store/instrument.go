package store

import (
	"context"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/common/metrics"
	"application-intake/internal/models"
)

type instrumented struct {
	DraftStore
}

// Instrument records operation counts and latencies for s.
func Instrument(s DraftStore) DraftStore {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{DraftStore: s}
}

func (i *instrumented) observe(operation string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.HasCode(err, errors.ErrCodeStaleWrite):
		outcome = metrics.OutcomeStale
	case errors.HasCode(err, errors.ErrCodeApplicationSubmitted):
		outcome = metrics.OutcomeBlocked
	case err != nil:
		outcome = metrics.OutcomeFailure
	}
	backend := i.Name()
	metrics.StoreOperations.WithLabelValues(backend, operation, outcome).Inc()
	metrics.StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Get(ctx context.Context, userID string) (*models.Draft, error) {
	start := time.Now()
	d, err := i.DraftStore.Get(ctx, userID)
	i.observe("get", start, err)
	return d, err
}

func (i *instrumented) Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	start := time.Now()
	d, err := i.DraftStore.Save(ctx, req)
	i.observe("save", start, err)
	return d, err
}
