// internal/workers/intake/load-application/handler.go
package loadapplication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"application-intake/internal/common/logger"
	"application-intake/internal/models"
	"application-intake/internal/submission"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "intake-load-application"
)

var (
	ErrInvalidInput            = errors.New("INVALID_INPUT")
	ErrApplicationNotFound     = errors.New("APPLICATION_NOT_FOUND")
	ErrApplicationNotSubmitted = errors.New("APPLICATION_NOT_SUBMITTED")
	ErrStoreUnavailable        = errors.New("STORE_UNAVAILABLE")
)

// DraftReader is the read side of the draft service.
type DraftReader interface {
	Get(ctx context.Context, userID string) (*models.Draft, error)
}

// Handler hands a submitted application to the process that reviews it.
type Handler struct {
	config *Config
	drafts DraftReader
	logger logger.Logger
}

// NewHandler uses LoadConfig when config is nil or has no timeout.
func NewHandler(config *Config, drafts DraftReader, log logger.Logger) *Handler {
	if config == nil || config.Timeout <= 0 {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		drafts: drafts,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.throwError(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	switch {
	case err == nil:
		h.completeJob(client, job, output)
	case errors.Is(err, ErrStoreUnavailable):
		h.failJob(client, job, err.Error(), job.Retries-1)
	case errors.Is(err, ErrApplicationNotFound):
		h.throwError(client, job, "APPLICATION_NOT_FOUND", err.Error())
	case errors.Is(err, ErrApplicationNotSubmitted):
		h.throwError(client, job, "APPLICATION_NOT_SUBMITTED", err.Error())
	case errors.Is(err, ErrInvalidInput):
		h.throwError(client, job, "INVALID_INPUT", err.Error())
	default:
		h.throwError(client, job, "UNKNOWN_ERROR", err.Error())
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	draft, err := h.drafts.Get(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: no draft for user %s", ErrApplicationNotFound, input.UserID)
	}
	if !draft.Submitted {
		return nil, fmt.Errorf("%w: draft of user %s is still open", ErrApplicationNotSubmitted, input.UserID)
	}

	sub, err := submission.FromDraft(draft)
	if err != nil {
		return nil, err
	}

	h.logger.Info("application loaded", map[string]interface{}{
		"userId":  sub.UserID,
		"version": sub.Version,
		"role":    string(sub.Application.Role),
	})

	return &Output{
		UserID:      sub.UserID,
		Version:     sub.Version,
		SubmittedAt: sub.SubmittedAt.UTC().Format(time.RFC3339),
		Summary:     sub.Summary(),
		Application: sub.Application,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

// failJob hands the job back to the broker for another attempt.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorMessage string, retries int32) {
	if retries < 0 {
		retries = 0
	}
	h.logger.Warn("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to fail job", map[string]interface{}{
			"error": err,
		})
	}
}

// throwError raises a BPMN error the process can catch.
func (h *Handler) throwError(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
