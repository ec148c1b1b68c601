package drafts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"application-intake/internal/application"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/observability"
	"application-intake/internal/common/validation"
	"application-intake/internal/engine"
	"application-intake/internal/flow"
	"application-intake/internal/models"
	"application-intake/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type recordingNotifier struct {
	mu     sync.Mutex
	drafts []*models.Draft
	err    error
}

func (r *recordingNotifier) Dispatch(ctx context.Context, d *models.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts = append(r.drafts, d)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

// blockingNotifier holds every dispatch until release is closed.
type blockingNotifier struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingNotifier) Dispatch(ctx context.Context, d *models.Draft) error {
	<-b.release
	close(b.done)
	return nil
}

type brokenStore struct{ store.DraftStore }

func (brokenStore) Name() string { return "broken" }

func (brokenStore) Save(context.Context, *models.SaveRequest) (*models.Draft, error) {
	return nil, errors.NewStoreUnavailableError("broken", stderrors.New("connection refused"))
}

// ==========================
// Test Helper Functions
// ==========================

func createTestService(t *testing.T, notifier Notifier, strict bool) *Service {
	t.Helper()
	v, err := validation.NewDraftValidator()
	require.NoError(t, err)
	return NewService(
		store.NewMemoryStore(store.Options{StrictVersions: strict}),
		v, notifier, observability.NewNoop(), time.Second, logger.NewTestLogger(t),
	)
}

func saveRequest(userID, data string, version int64, submit bool) *models.SaveRequest {
	return &models.SaveRequest{UserID: userID, Data: json.RawMessage(data), Version: version, Submit: submit}
}

// ==========================
// Service Tests
// ==========================

func TestService_SaveAndGet(t *testing.T) {
	svc := createTestService(t, nil, false)
	ctx := context.Background()

	d, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = svc.Save(ctx, saveRequest("u1", `{"role":"innovator","innovator":{"leadName":"Lin"}}`, 1, false))
	require.NoError(t, err)

	d, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"innovator","innovator":{"leadName":"Lin"}}`, string(d.Data))
	assert.Equal(t, "memory", svc.Backend())
	assert.NoError(t, svc.Ping(ctx))
}

func TestService_RejectsInvalidDocuments(t *testing.T) {
	svc := createTestService(t, nil, false)

	tests := []struct {
		name string
		req  *models.SaveRequest
		code errors.ErrorCode
	}{
		{"missing user", saveRequest("", `{}`, 1, false), errors.ErrCodeValidationFailed},
		{"missing data", &models.SaveRequest{UserID: "u1", Version: 1}, errors.ErrCodeValidationFailed},
		{"not json", saveRequest("u1", `{"role":`, 1, false), errors.ErrCodeValidationFailed},
		{"unknown role", saveRequest("u1", `{"role":"mentor"}`, 1, false), errors.ErrCodeSchemaViolation},
		{"declaration not bool", saveRequest("u1", `{"declarations":{"isAccurate":"yes"}}`, 1, false), errors.ErrCodeSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}

	d, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestService_NotifiesOnlyOnSubmit(t *testing.T) {
	notifier := &recordingNotifier{err: stderrors.New("topic unavailable")}
	svc := createTestService(t, notifier, false)
	ctx := context.Background()

	_, err := svc.Save(ctx, saveRequest("u1", `{"role":"founder"}`, 1, false))
	require.NoError(t, err)
	assert.Zero(t, notifier.count())

	d, err := svc.Save(ctx, saveRequest("u1", `{"role":"founder"}`, 2, true))
	require.NoError(t, err, "hook failures must not fail the submit")
	assert.True(t, d.Submitted)
	svc.Wait()
	assert.Equal(t, 1, notifier.count())
}

func TestService_SubmitDoesNotWaitForHooks(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{}), done: make(chan struct{})}
	svc := createTestService(t, notifier, false)

	d, err := svc.Save(context.Background(), saveRequest("u1", `{"role":"founder"}`, 1, true))
	require.NoError(t, err)
	assert.True(t, d.Submitted)

	select {
	case <-notifier.done:
		t.Fatal("hooks finished before they were released")
	default:
	}

	close(notifier.release)
	svc.Wait()
	select {
	case <-notifier.done:
	default:
		t.Fatal("Wait returned before the hooks finished")
	}
}

func TestService_PropagatesStoreErrors(t *testing.T) {
	svc := createTestService(t, nil, true)
	ctx := context.Background()

	_, err := svc.Save(ctx, saveRequest("u1", `{}`, 3, false))
	require.NoError(t, err)
	_, err = svc.Save(ctx, saveRequest("u1", `{}`, 2, false))
	assert.True(t, errors.HasCode(err, errors.ErrCodeStaleWrite))

	broken := NewService(brokenStore{}, nil, nil, observability.NewNoop(), 0, logger.NewTestLogger(t))
	_, err = broken.Save(ctx, saveRequest("u1", `{}`, 1, false))
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
	assert.True(t, errors.IsRetryable(err))
}

// ==========================
// Session Integration
// ==========================

func TestService_BacksACompleteSession(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := createTestService(t, notifier, true)
	identity := models.Identity{UserID: "u-session", Email: "ada@example.com"}

	e := engine.New(flow.DefaultRegistry(), application.New(), svc, identity, engine.Config{}, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, e.SelectRole(models.RoleFounder))
	require.NoError(t, e.UpdateFounder(application.Patch{
		"fullName":  "Ada Lovelace",
		"email":     "ada@example.com",
		"phone":     "+44 20 0000 0000",
		"status":    "full_time",
		"education": "Mathematics",
		"skills":    []interface{}{"engineering"},
	}))
	require.NoError(t, e.UpdateVenture(application.Patch{
		"name":     "Analytical Engines",
		"sector":   "computing",
		"stage":    "idea",
		"track":    "startup",
		"problem":  strings.Repeat("p", flow.PitchMinChars),
		"solution": strings.Repeat("s", flow.PitchMinChars),
		"startup": map[string]interface{}{
			"legalName":          "Analytical Engines Ltd",
			"registrationNumber": "1843",
		},
	}))
	require.NoError(t, e.UpdateDeclarations(application.Patch{
		"isAccurate":            true,
		"agreesToTerms":         true,
		"agreesToCommunication": true,
	}))

	var out *engine.Outcome
	for i := 0; i < 32 && (out == nil || !out.Submitted); i++ {
		var err error
		out, err = e.Advance(ctx)
		require.NoError(t, err, "step %s", e.CurrentStep().ID)
	}
	require.True(t, out.Submitted)
	assert.Equal(t, "/apply/success", out.Redirect)

	stored, err := svc.Get(ctx, "u-session")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Submitted)
	assert.Equal(t, e.Version(), stored.Version)
	svc.Wait()
	assert.Equal(t, 1, notifier.count())

	var app models.ApplicationData
	require.NoError(t, json.Unmarshal(stored.Data, &app))
	assert.Equal(t, "Analytical Engines Ltd", app.Venture.Startup.LegalName)
}
