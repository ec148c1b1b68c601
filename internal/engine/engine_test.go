package engine

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"application-intake/internal/application"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/flow"
	"application-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// ==========================
// Mock Implementations
// ==========================

type fakeBackend struct {
	mu       sync.Mutex
	saves    []*models.SaveRequest
	stored   *models.Draft
	failures int
	saveErr  error

	// before runs ahead of storing and may block; after runs once stored.
	before func(req *models.SaveRequest)
	after  func(req *models.SaveRequest)
}

func (f *fakeBackend) FetchApplication(ctx context.Context, userID string) (*models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeBackend) SaveApplication(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	if f.before != nil {
		f.before(req)
	}

	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, f.saveErr
	}
	f.saves = append(f.saves, req)
	f.stored = &models.Draft{
		UserID:    req.UserID,
		Data:      req.Data,
		Submitted: req.Submit,
		Version:   req.Version,
		UpdatedAt: time.Now(),
	}
	draft := *f.stored
	f.mu.Unlock()

	if f.after != nil {
		f.after(req)
	}
	return &draft, nil
}

func (f *fakeBackend) savedRequests() []*models.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.SaveRequest(nil), f.saves...)
}

func (f *fakeBackend) storedDraft() *models.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored
}

// ==========================
// Test Helper Functions
// ==========================

var testIdentity = models.Identity{UserID: "u123", Email: "ada@example.com"}

func newTestEngine(t *testing.T, backend Backend, identity models.Identity) *Engine {
	t.Helper()
	return New(flow.DefaultRegistry(), application.New(), backend, identity, Config{
		AutosaveTimeout: time.Second,
		SubmitTimeout:   time.Second,
	}, logger.NewTestLogger(t))
}

func fillFounderApplication(t *testing.T, e *Engine) {
	t.Helper()
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
}

func ids(steps []flow.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

// ==========================
// Step Resolution Tests
// ==========================

func TestEngine_StartsAtFirstStep(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)

	assert.Equal(t, "welcome", e.CurrentStep().ID)
	assert.Equal(t, 0, e.Index())
	assert.Equal(t, 50.0, e.SectionProgress())
	assert.True(t, e.CanAdvance())
	assert.NotEmpty(t, e.ActiveSteps())
}

func TestEngine_TrackSwitchSwapsStepsAndKeepsValues(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	fillFounderApplication(t, e)

	assert.Contains(t, ids(e.ActiveSteps()), "startup_registration")

	require.NoError(t, e.UpdateVenture(application.Patch{"track": "researcher"}))

	active := ids(e.ActiveSteps())
	assert.Contains(t, active, "research_institute")
	assert.NotContains(t, active, "startup_registration")
	assert.Equal(t, "Analytical Engines Ltd", e.State().Snapshot().Venture.Startup.LegalName)
}

func TestEngine_CurrentStepClampsWhenStepDisappears(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	fillFounderApplication(t, e)

	require.True(t, e.JumpTo("startup_registration"))
	before := e.Index()

	require.NoError(t, e.UpdateVenture(application.Patch{"track": "researcher"}))
	assert.Equal(t, "research_institute", e.CurrentStep().ID)
	assert.Equal(t, before, e.Index())
}

func TestEngine_CurrentStepFollowsIDWhenEarlierStepsChange(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("pitch"))

	require.NoError(t, e.UpdateVenture(application.Patch{"track": nil}))
	assert.Equal(t, "pitch", e.CurrentStep().ID)
}

func TestEngine_RoleSwitchSelectsFlow(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	require.True(t, e.JumpTo("role_selection"))

	require.NoError(t, e.SelectRole(models.RoleInnovator))
	assert.Equal(t, flow.InnovatorFlowID, e.Flow().ID)
	assert.Equal(t, "role_selection", e.CurrentStep().ID)
	assert.Contains(t, ids(e.ActiveSteps()), "innovator_identity")
}

func TestEngine_PanickingConditionExcludesStep(t *testing.T) {
	panicky := flow.New("founder").ForRole(models.RoleFounder).Step(
		flow.Intro("welcome", flow.SectionWelcome, "Welcome"),
		flow.Intro("broken", flow.SectionWelcome, "Broken").When(flow.ConditionFunc(func(flow.View) bool {
			panic("boom")
		})),
		flow.Review("final_review", flow.SectionReview, "Review"),
	).MustBuild()
	reg, err := flow.NewRegistry(models.RoleFounder, panicky)
	require.NoError(t, err)

	e := New(reg, nil, &fakeBackend{}, testIdentity, Config{}, logger.NewTestLogger(t))
	assert.Equal(t, []string{"welcome", "final_review"}, ids(e.ActiveSteps()))

	out, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "final_review", out.Step.ID)
	e.Wait()
}

// ==========================
// Navigation Tests
// ==========================

func TestAdvance_BlockedByValidation(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	require.True(t, e.JumpTo("identity"))
	require.NoError(t, e.UpdateFounder(application.Patch{"email": "ada@example.com", "phone": "1"}))

	assert.False(t, e.CanAdvance())
	issues := e.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "founder.fullName", issues[0].Field)

	out, err := e.Advance(context.Background())
	assert.Nil(t, out)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStepBlocked))
	assert.Equal(t, "identity", e.CurrentStep().ID)

	require.NoError(t, e.UpdateFounder(application.Patch{"fullName": "Ada"}))
	out, err = e.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "status", out.Step.ID)
	e.Wait()
}

func TestAdvance_AutosaveIsNonBlocking(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{before: func(*models.SaveRequest) { <-release }}
	e := newTestEngine(t, backend, testIdentity)

	done := make(chan *Outcome, 1)
	go func() {
		out, err := e.Advance(context.Background())
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		assert.Equal(t, "role_selection", out.Step.ID)
		assert.False(t, out.Submitted)
	case <-time.After(time.Second):
		t.Fatal("Advance waited for the autosave")
	}

	close(release)
	e.Wait()

	saves := backend.savedRequests()
	require.Len(t, saves, 1)
	assert.False(t, saves[0].Submit)
	assert.Equal(t, int64(1), saves[0].Version)
	assert.Equal(t, "u123", saves[0].UserID)
}

func TestAdvance_AutosaveSnapshotIsCapturedAtAdvance(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{before: func(*models.SaveRequest) { <-release }}
	e := newTestEngine(t, backend, testIdentity)
	require.NoError(t, e.UpdateFounder(application.Patch{"fullName": "Before"}))

	_, err := e.Advance(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.UpdateFounder(application.Patch{"fullName": "After"}))

	close(release)
	e.Wait()

	saves := backend.savedRequests()
	require.Len(t, saves, 1)
	assert.Equal(t, "Before", gjson.GetBytes(saves[0].Data, "founder.fullName").String())
}

func TestAdvance_AutosaveFailureIsSwallowed(t *testing.T) {
	backend := &fakeBackend{failures: 1, saveErr: stderrors.New("connection refused")}
	e := newTestEngine(t, backend, testIdentity)

	out, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "role_selection", out.Step.ID)
	e.Wait()
	assert.Empty(t, backend.savedRequests())
}

func TestAdvance_AutosaveSkippedWithoutUser(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, models.Identity{})

	_, err := e.Advance(context.Background())
	require.NoError(t, err)
	e.Wait()
	assert.Empty(t, backend.savedRequests())
}

func TestAdvance_VersionsAreMonotonic(t *testing.T) {
	backend := &fakeBackend{}
	e := New(flow.DefaultRegistry(), nil, backend, testIdentity, Config{BaseVersion: 41}, logger.NewTestLogger(t))
	require.NoError(t, e.SelectRole(models.RoleFounder))

	for i := 0; i < 2; i++ {
		_, err := e.Advance(context.Background())
		require.NoError(t, err)
	}
	e.Wait()

	versions := make([]int64, 0, 2)
	for _, req := range backend.savedRequests() {
		versions = append(versions, req.Version)
	}
	assert.ElementsMatch(t, []int64{42, 43}, versions)
	assert.Equal(t, int64(43), e.Version())
}

func TestAdvance_OutOfOrderAutosavesAreLastWriteWins(t *testing.T) {
	secondStored := make(chan struct{})
	backend := &fakeBackend{
		before: func(req *models.SaveRequest) {
			if req.Version == 1 {
				<-secondStored
			}
		},
		after: func(req *models.SaveRequest) {
			if req.Version == 2 {
				close(secondStored)
			}
		},
	}
	e := newTestEngine(t, backend, testIdentity)
	require.NoError(t, e.SelectRole(models.RoleFounder))

	_, err := e.Advance(context.Background())
	require.NoError(t, err)
	_, err = e.Advance(context.Background())
	require.NoError(t, err)
	e.Wait()

	saves := backend.savedRequests()
	require.Len(t, saves, 2)
	assert.Equal(t, int64(2), saves[0].Version)
	assert.Equal(t, int64(1), saves[1].Version)
	assert.Equal(t, int64(1), backend.storedDraft().Version)
}

func TestBack_IsPureNavigation(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, testIdentity)

	assert.Equal(t, "welcome", e.Back().ID)
	assert.Equal(t, 0, e.Index())

	require.True(t, e.JumpTo("identity"))
	assert.Equal(t, "role_selection", e.Back().ID)
	e.Wait()
	assert.Empty(t, backend.savedRequests())
}

func TestJumpTo_UnknownOrInactiveIsNoOp(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("identity"))

	assert.False(t, e.JumpTo("does_not_exist"))
	assert.False(t, e.JumpTo("research_institute"))
	assert.Equal(t, "identity", e.CurrentStep().ID)
}

func TestJumpTo_RoundTripLeavesOtherFieldsUntouched(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{}, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))
	before := e.State().Snapshot()

	require.True(t, e.JumpTo("identity"))
	require.NoError(t, e.UpdateFounder(application.Patch{"fullName": "Augusta Ada King"}))
	require.True(t, e.JumpTo("final_review"))

	after := e.State().Snapshot()
	expected := before.Clone()
	expected.Founder.FullName = "Augusta Ada King"
	assert.Equal(t, expected, after)
	assert.Equal(t, "final_review", e.CurrentStep().ID)
}

// ==========================
// Submit Tests
// ==========================

func TestAdvance_TerminalStepSubmits(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))

	out, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.Equal(t, "/apply/success", out.Redirect)
	assert.True(t, e.Submitted())

	stored := backend.storedDraft()
	require.NotNil(t, stored)
	assert.True(t, stored.Submitted)
	assert.Equal(t, "Ada Lovelace", gjson.GetBytes(stored.Data, "founder.fullName").String())

	_, err = e.Advance(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationSubmitted))
	assert.Error(t, e.UpdateFounder(application.Patch{"city": "London"}))
}

func TestAdvance_SubmitFailureIsRetryable(t *testing.T) {
	backend := &fakeBackend{failures: 1, saveErr: stderrors.New("503 service unavailable")}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))
	before := e.State().Snapshot()

	out, err := e.Advance(context.Background())
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSubmitFailed))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, "final_review", e.CurrentStep().ID)
	assert.Equal(t, before, e.State().Snapshot())
	assert.False(t, e.Submitted())

	out, err = e.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
}

func TestAdvance_SubmitRejectsSkippedSteps(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, testIdentity)
	require.True(t, e.JumpTo("final_review"))

	out, err := e.Advance(context.Background())
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStepBlocked))
	assert.Equal(t, "role_selection", errors.AsStandard(err).Metadata["stepId"])
	assert.Equal(t, "final_review", e.CurrentStep().ID)
	assert.False(t, e.Submitted())
	assert.Empty(t, backend.savedRequests())
}

func TestAdvance_SubmitRevalidatesStepsAddedByTrackSwitch(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)

	require.True(t, e.JumpTo("track_selection"))
	require.NoError(t, e.UpdateVenture(application.Patch{"track": "researcher"}))
	require.True(t, e.JumpTo("final_review"))

	_, err := e.Advance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStepBlocked))
	assert.Equal(t, "research_institute", errors.AsStandard(err).Metadata["stepId"])
	assert.False(t, e.Submitted())
	assert.Empty(t, backend.savedRequests())

	require.NoError(t, e.UpdateVenture(application.Patch{
		"research": map[string]interface{}{
			"institute":      "Royal Institution",
			"supervisorName": "Charles Babbage",
		},
	}))
	out, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
}

func TestAdvance_SubmitAlreadyStoredCountsAsSuccess(t *testing.T) {
	backend := &fakeBackend{failures: 1, saveErr: errors.NewApplicationSubmittedError(testIdentity.UserID)}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))

	out, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.Equal(t, "/apply/success", out.Redirect)
	assert.True(t, e.Submitted())
}

func TestAdvance_SubmitRejectedByBackendIsNotRetryable(t *testing.T) {
	backend := &fakeBackend{failures: 1, saveErr: errors.NewSchemaViolationError("venture.problem: String length must be less than or equal to 20000")}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))

	_, err := e.Advance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSubmitFailed))
	assert.False(t, errors.IsRetryable(err))
	assert.False(t, e.Submitted())
}

func TestAdvance_SubmitWithoutUserRedirectsToLogin(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, models.Identity{})
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("final_review"))

	out, err := e.Advance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthenticationFail))
	require.NotNil(t, out)
	assert.Equal(t, "/login", out.Redirect)
	assert.False(t, e.Submitted())
	assert.Empty(t, backend.savedRequests())
}

func TestAdvance_SubmitWaitsForPendingAutosaves(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, testIdentity)
	fillFounderApplication(t, e)
	require.True(t, e.JumpTo("declarations"))

	_, err := e.Advance(context.Background())
	require.NoError(t, err)
	_, err = e.Advance(context.Background())
	require.NoError(t, err)

	saves := backend.savedRequests()
	require.Len(t, saves, 2)
	assert.False(t, saves[0].Submit)
	assert.True(t, saves[1].Submit)
	assert.Greater(t, saves[1].Version, saves[0].Version)
}
