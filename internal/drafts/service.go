// Package drafts is the backing-store service behind the intake sessions:
// it validates draft snapshots, persists them and triggers the submission
// hooks once an application is final.
package drafts

import (
	"context"
	"strings"
	"sync"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/observability"
	"application-intake/internal/common/validation"
	"application-intake/internal/engine"
	"application-intake/internal/models"
	"application-intake/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Notifier is told about every draft that was stored as submitted.
type Notifier interface {
	Dispatch(ctx context.Context, draft *models.Draft) error
}

type Service struct {
	store     store.DraftStore
	validator *validation.SchemaValidator
	notifier  Notifier
	obs       *observability.Observability
	timeout   time.Duration
	logger    logger.Logger

	dispatches sync.WaitGroup
}

var _ engine.Backend = (*Service)(nil)

// NewService wires a store with optional validation and notification.
// A nil validator accepts any JSON document; a nil notifier skips hooks.
func NewService(
	s store.DraftStore,
	validator *validation.SchemaValidator,
	notifier Notifier,
	obs *observability.Observability,
	timeout time.Duration,
	log logger.Logger,
) *Service {
	return &Service{
		store:     store.Instrument(s),
		validator: validator,
		notifier:  notifier,
		obs:       obs,
		timeout:   timeout,
		logger:    logger.Component(log, "drafts"),
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get returns the stored draft or (nil, nil).
func (s *Service) Get(ctx context.Context, userID string) (*models.Draft, error) {
	if userID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}
	ctx, span := s.obs.StartSpan(ctx, "drafts.get", attribute.String("user.id", userID))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.store.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithError(err).Error("draft fetch failed", map[string]interface{}{"userId": userID})
		return nil, err
	}
	return d, nil
}

// Save validates and stores req. Submitted drafts are handed to the
// notifier; its failures are logged and do not fail the save.
func (s *Service) Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	if req == nil || req.UserID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}
	kind := "autosave"
	if req.Submit {
		kind = "submit"
	}

	ctx, span := s.obs.StartSpan(ctx, "drafts.save",
		attribute.String("user.id", req.UserID),
		attribute.Int64("draft.version", req.Version),
		attribute.String("draft.kind", kind),
	)
	defer span.End()

	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.obs.RecordSave(ctx, kind, "invalid")
		s.logger.Warn("draft rejected", map[string]interface{}{
			"userId": req.UserID,
			"error":  err.Error(),
		})
		return nil, err
	}

	start := time.Now()
	storeCtx, cancel := s.withTimeout(ctx)
	draft, err := s.store.Save(storeCtx, req)
	cancel()

	status := "success"
	if err != nil {
		status = string(errors.AsStandard(err).Code)
	}
	s.obs.RecordSave(ctx, kind, status)
	s.obs.RecordSaveDuration(ctx, time.Since(start), status)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithError(err).Warn("draft save failed", map[string]interface{}{
			"userId":  req.UserID,
			"version": req.Version,
			"kind":    kind,
		})
		return nil, err
	}

	s.logger.Debug("draft saved", map[string]interface{}{
		"userId":  req.UserID,
		"version": draft.Version,
		"kind":    kind,
	})

	if draft.Submitted && s.notifier != nil {
		s.notify(context.WithoutCancel(ctx), draft)
	}
	return draft, nil
}

// notify runs the submission hooks off the request path so a slow hook
// cannot hold the submit response.
func (s *Service) notify(ctx context.Context, draft *models.Draft) {
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		if err := s.notifier.Dispatch(ctx, draft); err != nil {
			s.logger.WithError(err).Warn("submission hooks reported failures", map[string]interface{}{
				"userId": draft.UserID,
			})
		}
	}()
}

// Wait blocks until every pending hook dispatch has finished.
func (s *Service) Wait() {
	s.dispatches.Wait()
}

func (s *Service) validate(req *models.SaveRequest) error {
	if len(req.Data) == 0 {
		return errors.NewValidationFailedError("data is required")
	}
	if s.validator == nil {
		return nil
	}
	res, err := s.validator.Validate(req.Data)
	if err != nil {
		return errors.NewValidationFailedError("data is not a JSON document")
	}
	if !res.Valid {
		return errors.NewSchemaViolationError(strings.Join(res.GetErrorMessages(), "; "))
	}
	return nil
}

// FetchApplication lets in-process sessions use the service as their backend.
func (s *Service) FetchApplication(ctx context.Context, userID string) (*models.Draft, error) {
	return s.Get(ctx, userID)
}

func (s *Service) SaveApplication(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	return s.Save(ctx, req)
}

func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// Backend names the underlying store.
func (s *Service) Backend() string {
	return s.store.Name()
}
