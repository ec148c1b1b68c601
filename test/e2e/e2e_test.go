// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"application-intake/internal/application"
	"application-intake/internal/client"
	"application-intake/internal/common/auth"
	"application-intake/internal/common/config"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/observability"
	"application-intake/internal/common/validation"
	"application-intake/internal/drafts"
	"application-intake/internal/engine"
	"application-intake/internal/flow"
	"application-intake/internal/models"
	"application-intake/internal/resume"
	"application-intake/internal/server"
	"application-intake/internal/store"
	"application-intake/internal/submission"
)

// recordingHook captures fired submissions.
type recordingHook struct {
	mu    sync.Mutex
	fired []*submission.Submission
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) Fire(ctx context.Context, s *submission.Submission) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fired = append(h.fired, s)
	return nil
}

func (h *recordingHook) submissions() []*submission.Submission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*submission.Submission(nil), h.fired...)
}

type stack struct {
	store    store.DraftStore
	svc      *drafts.Service
	hook     *recordingHook
	api      *client.Client
	backend  *sessionBackend
	hydrator *resume.Hydrator
}

// newStack wires a Redis backed API server and a hydrator that talks to it
// over HTTP.
func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	draftStore := store.NewRedisStore(rdb, "e2e:draft:", time.Hour, store.Options{StrictVersions: true})

	validator, err := validation.NewDraftValidator()
	require.NoError(t, err)

	hook := &recordingHook{}
	dispatcher := submission.NewDispatcher(time.Second, log, hook)
	svc := drafts.NewService(draftStore, validator, dispatcher, observability.NewNoop(), 2*time.Second, log)

	decoder := auth.NewClaimsDecoder()
	registry := flow.DefaultRegistry()
	srv := httptest.NewServer(server.New(svc, decoder, registry, log).SetupRoutes())
	t.Cleanup(srv.Close)

	flowCfg := config.FlowConfig{
		BaselineTrack:   "startup",
		LoginRedirect:   "/login",
		SuccessRedirect: "/apply/submitted",
		FlowRedirect:    "/apply/%s",
		BackendURL:      srv.URL,
		AutosaveTimeout: 2000,
		SubmitTimeout:   2000,
	}
	hydratorCfg, err := resume.ConfigFrom(flowCfg)
	require.NoError(t, err)

	api := client.FromConfig(flowCfg)
	backend := &sessionBackend{api: api}
	return &stack{
		store:    draftStore,
		svc:      svc,
		hook:     hook,
		api:      api,
		backend:  backend,
		hydrator: resume.NewHydrator(decoder, backend, registry, hydratorCfg, log),
	}
}

// sessionBackend calls the API as the most recently hydrated user.
type sessionBackend struct {
	api   *client.Client
	mu    sync.Mutex
	token string
}

func (b *sessionBackend) use(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *sessionBackend) client() *client.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.api.WithSessionToken(b.token)
}

func (b *sessionBackend) FetchApplication(ctx context.Context, userID string) (*models.Draft, error) {
	return b.client().FetchApplication(ctx, userID)
}

func (b *sessionBackend) SaveApplication(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	return b.client().SaveApplication(ctx, req)
}

func (s *stack) hydrate(t *testing.T, token string) *resume.Result {
	t.Helper()
	s.backend.use(token)
	res, err := s.hydrator.Hydrate(context.Background(), token, application.New())
	require.NoError(t, err)
	return res
}

func advance(t *testing.T, e *engine.Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.Advance(context.Background())
		require.NoError(t, err, "step %s", e.CurrentStep().ID)
	}
}

var applicant = models.Identity{UserID: "u-e2e", Email: "ada@example.com"}

// ==========================
// End-to-end Scenarios
// ==========================

func TestResumeAndSubmitOverHTTP(t *testing.T) {
	s := newStack(t)
	token := auth.EncodeClaims(applicant)
	ctx := context.Background()

	// First visit: no draft, baseline flow, partial answers autosaved.
	first := s.hydrate(t, token)
	require.False(t, first.FromDraft())
	assert.Equal(t, resume.SourceBaseline, first.Source)

	e := first.Engine
	require.NoError(t, e.SelectRole(models.RoleFounder))
	require.NoError(t, e.UpdateFounder(application.Patch{
		"fullName":  "Ada Lovelace",
		"email":     "ada@example.com",
		"phone":     "+44 20 0000 0000",
		"status":    "full_time",
		"education": "Mathematics",
		"skills":    []interface{}{"engineering"},
	}))
	advance(t, e, 2)
	e.Wait()

	stored, err := s.store.Get(ctx, applicant.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Submitted)
	assert.Equal(t, e.Version(), stored.Version)

	// Second visit: the draft is restored and the session finishes.
	second := s.hydrate(t, token)
	require.True(t, second.FromDraft())
	assert.Equal(t, flow.FounderFlowID, second.FlowID)
	assert.Contains(t, second.Restored, models.DomainFounder)
	assert.Equal(t, 0, second.Engine.Index())

	e = second.Engine
	assert.Equal(t, stored.Version, e.Version())
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
		out, err = e.Advance(ctx)
		require.NoError(t, err, "step %s", e.CurrentStep().ID)
	}
	require.True(t, out.Submitted)

	stored, err = s.store.Get(ctx, applicant.UserID)
	require.NoError(t, err)
	assert.True(t, stored.Submitted)
	assert.Equal(t, e.Version(), stored.Version)

	var app models.ApplicationData
	require.NoError(t, json.Unmarshal(stored.Data, &app))
	assert.Equal(t, "Ada Lovelace", app.Founder.FullName)
	assert.Equal(t, "Analytical Engines Ltd", app.Venture.Startup.LegalName)

	s.svc.Wait()
	fired := s.hook.submissions()
	require.Len(t, fired, 1)
	assert.Equal(t, applicant.UserID, fired[0].UserID)
	assert.Equal(t, "ada@example.com", fired[0].ApplicantEmail())

	// Third visit: the submitted draft is read-only.
	third := s.hydrate(t, token)
	require.True(t, third.FromDraft())
	assert.True(t, third.Engine.State().Submitted())

	_, err = s.api.WithSessionToken(token).SaveApplication(ctx, &models.SaveRequest{
		UserID:  applicant.UserID,
		Data:    stored.Data,
		Version: stored.Version + 1,
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationSubmitted), "got %v", err)
}

func TestDraftsAreScopedToTheTokenOwner(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	owner := s.api.WithSessionToken(auth.EncodeClaims(applicant))
	_, err := owner.SaveApplication(ctx, &models.SaveRequest{
		UserID:  applicant.UserID,
		Data:    json.RawMessage(`{"role":"innovator","innovator":{"leadName":"Lin"}}`),
		Version: 1,
	})
	require.NoError(t, err)

	intruder := s.api.WithSessionToken(auth.EncodeClaims(models.Identity{UserID: "u-other"}))
	_, err = intruder.FetchApplication(ctx, applicant.UserID)
	assert.True(t, errors.HasCode(err, errors.ErrCodeForbidden), "got %v", err)

	// The intruder's own session starts from the baseline flow.
	res := s.hydrate(t, auth.EncodeClaims(models.Identity{UserID: "u-other"}))
	assert.Equal(t, resume.SourceBaseline, res.Source)
	assert.Equal(t, flow.FounderFlowID, res.FlowID)
}

func TestInvalidTokenRedirectsToLogin(t *testing.T) {
	s := newStack(t)

	state := application.New()
	res, err := s.hydrator.Hydrate(context.Background(), "not a token", state)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTokenInvalid))
	assert.Equal(t, "/login", res.Redirect)
	assert.Nil(t, res.Engine)
}
