// Package engine drives one user session through an intake flow: it
// resolves the active steps, gates navigation on step validation, autosaves
// drafts in the background and performs the final submit.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"application-intake/internal/application"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/metrics"
	"application-intake/internal/flow"
	"application-intake/internal/models"

	"go.uber.org/atomic"
)

// Backend persists drafts. FetchApplication returns (nil, nil) when the user
// has no draft.
type Backend interface {
	FetchApplication(ctx context.Context, userID string) (*models.Draft, error)
	SaveApplication(ctx context.Context, req *models.SaveRequest) (*models.Draft, error)
}

// Config holds session level settings.
type Config struct {
	AutosaveTimeout time.Duration
	SubmitTimeout   time.Duration
	SuccessRedirect string
	LoginRedirect   string
	// BaseVersion is the version of the draft the session resumed from.
	// Save versions continue from it.
	BaseVersion int64
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		AutosaveTimeout: 10 * time.Second,
		SubmitTimeout:   30 * time.Second,
		SuccessRedirect: "/apply/success",
		LoginRedirect:   "/login",
	}
}

// Outcome describes where a navigation request landed.
type Outcome struct {
	Step      flow.Step `json:"step"`
	Index     int       `json:"index"`
	Submitted bool      `json:"submitted"`
	Redirect  string    `json:"redirect,omitempty"`
}

// Engine is not shared between users. Navigation is serialised; state
// updates may happen concurrently with navigation.
type Engine struct {
	registry *flow.Registry
	state    *application.State
	backend  Backend
	identity models.Identity
	cfg      Config
	logger   logger.Logger

	mu        sync.Mutex
	index     int
	currentID string

	seq   *atomic.Int64
	saves sync.WaitGroup
}

// New creates an engine positioned at the first active step.
func New(registry *flow.Registry, state *application.State, backend Backend, identity models.Identity, cfg Config, log logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.AutosaveTimeout <= 0 {
		cfg.AutosaveTimeout = def.AutosaveTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = def.SuccessRedirect
	}
	if cfg.LoginRedirect == "" {
		cfg.LoginRedirect = def.LoginRedirect
	}
	if state == nil {
		state = application.New()
	}

	return &Engine{
		registry: registry,
		state:    state,
		backend:  backend,
		identity: identity,
		cfg:      cfg,
		logger:   logger.Component(log, "engine").WithFields(map[string]interface{}{"userId": identity.UserID}),
		seq:      atomic.NewInt64(cfg.BaseVersion),
	}
}

// State returns the application context driven by the engine.
func (e *Engine) State() *application.State { return e.state }

// Identity returns the session identity.
func (e *Engine) Identity() models.Identity { return e.identity }

// Flow returns the flow selected by the current role.
func (e *Engine) Flow() *flow.Flow {
	return e.registry.ForRole(e.state.Role())
}

// Version returns the last version handed to the backend.
func (e *Engine) Version() int64 { return e.seq.Load() }

// snapshot is one consistent evaluation of the flow against the state.
type snapshot struct {
	flow  *flow.Flow
	view  flow.View
	steps []flow.Step
	index int
}

func (s snapshot) step() flow.Step { return s.steps[s.index] }

func (s snapshot) terminal() bool { return s.index == len(s.steps)-1 }

// resolveLocked recomputes the active steps and the current position. The
// current step keeps its position by id while it stays active; otherwise the
// stored index is clamped to the new sequence.
func (e *Engine) resolveLocked() snapshot {
	f := e.Flow()
	view := e.state.View()
	steps := e.active(f, view)

	idx := flow.IndexOf(steps, e.currentID)
	if idx < 0 {
		idx = e.index
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		if idx < 0 {
			idx = 0
		}
	}
	e.index = idx
	e.currentID = steps[idx].ID
	return snapshot{flow: f, view: view, steps: steps, index: idx}
}

func (e *Engine) active(f *flow.Flow, view flow.View) []flow.Step {
	steps, faults := f.Active(view)
	for _, fault := range faults {
		metrics.ConditionPanics.WithLabelValues(f.ID).Inc()
		e.logger.Error("Step condition panicked, step excluded", map[string]interface{}{
			"flowId": f.ID,
			"error":  fault,
		})
	}
	return steps
}

// ActiveSteps returns the steps whose condition holds for the current
// state, in declared order. It is recomputed on every call.
func (e *Engine) ActiveSteps() []flow.Step {
	f := e.Flow()
	return e.active(f, e.state.View())
}

// CurrentStep returns the step at the clamped current position.
func (e *Engine) CurrentStep() flow.Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveLocked().step()
}

// Index returns the clamped current position.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveLocked().index
}

// SectionProgress returns the position of the current step within its
// section as a percentage in (0, 100].
func (e *Engine) SectionProgress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.resolveLocked()
	return flow.SectionProgress(snap.steps, snap.index)
}

// CanAdvance reports whether the current step validates.
func (e *Engine) CanAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.resolveLocked()
	return flow.CanAdvance(snap.step(), snap.view)
}

// Issues lists the failing validators of the current step.
func (e *Engine) Issues() []flow.Issue {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.resolveLocked()
	return flow.Check(snap.step(), snap.view)
}

// Advance moves past the current step. On a non-terminal step it starts a
// background autosave and moves forward. On the terminal step every active
// step must validate; it then submits and blocks until the backend answers.
// On failure the position and data are unchanged.
func (e *Engine) Advance(ctx context.Context) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Submitted() {
		metrics.NavigationTotal.WithLabelValues("advance", metrics.OutcomeBlocked).Inc()
		return nil, errors.NewApplicationSubmittedError(e.identity.UserID)
	}

	snap := e.resolveLocked()
	if err := blocked(snap.step(), snap.view); err != nil {
		metrics.NavigationTotal.WithLabelValues("advance", metrics.OutcomeBlocked).Inc()
		return nil, err
	}

	data := json.RawMessage(append([]byte(nil), snap.view.Bytes()...))

	if snap.terminal() {
		// Jumps and track changes can leave earlier steps unvalidated.
		for _, step := range snap.steps {
			if err := blocked(step, snap.view); err != nil {
				metrics.NavigationTotal.WithLabelValues("advance", metrics.OutcomeBlocked).Inc()
				e.logger.Info("Submit blocked by an incomplete step", map[string]interface{}{
					"stepId": step.ID,
				})
				return nil, err
			}
		}
		return e.submitLocked(ctx, snap, data)
	}

	e.autosave(ctx, data)

	next := snap.index + 1
	e.index = next
	e.currentID = snap.steps[next].ID
	metrics.NavigationTotal.WithLabelValues("advance", metrics.OutcomeSuccess).Inc()

	return &Outcome{Step: snap.steps[next], Index: next}, nil
}

func (e *Engine) submitLocked(ctx context.Context, snap snapshot, data json.RawMessage) (*Outcome, error) {
	if e.identity.UserID == "" {
		metrics.SubmitTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		e.logger.Warn("Submit attempted without an authenticated user", nil)
		return &Outcome{Step: snap.step(), Index: snap.index, Redirect: e.cfg.LoginRedirect},
			errors.NewAuthenticationError("session has no user")
	}

	// Pending autosaves carry older snapshots; let them land first.
	e.saves.Wait()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	defer cancel()

	start := time.Now()
	req := &models.SaveRequest{
		UserID:  e.identity.UserID,
		Data:    data,
		Submit:  true,
		Version: e.seq.Inc(),
	}
	_, err := e.backend.SaveApplication(ctx, req)
	metrics.SubmitDuration.Observe(time.Since(start).Seconds())

	if errors.HasCode(err, errors.ErrCodeApplicationSubmitted) {
		// An earlier attempt landed but its response was lost.
		e.logger.Info("Draft already stored as submitted", map[string]interface{}{
			"version": req.Version,
		})
		err = nil
	}
	if err != nil {
		metrics.SubmitTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		e.logger.Error("Final submit failed", map[string]interface{}{
			"stepId":  snap.step().ID,
			"version": req.Version,
			"error":   err,
		})
		return nil, errors.NewSubmitFailedError(err)
	}

	e.state.MarkSubmitted()
	metrics.SubmitTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	e.logger.Info("Application submitted", map[string]interface{}{
		"flowId":  snap.flow.ID,
		"version": req.Version,
	})

	return &Outcome{
		Step:      snap.step(),
		Index:     snap.index,
		Submitted: true,
		Redirect:  e.cfg.SuccessRedirect,
	}, nil
}

// blocked returns a STEP_BLOCKED error naming step when it does not validate.
func blocked(step flow.Step, view flow.View) error {
	issues := flow.Check(step, view)
	if len(issues) == 0 {
		return nil
	}
	fields := make([]string, len(issues))
	for i, issue := range issues {
		fields[i] = issue.Field
	}
	return errors.NewStepBlockedError(step.ID, fields)
}

// autosave sends data in the background. Failures are logged and dropped.
func (e *Engine) autosave(ctx context.Context, data json.RawMessage) {
	if e.identity.UserID == "" {
		metrics.AutosaveTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		e.logger.Warn("Autosave skipped, session has no user", nil)
		return
	}

	req := &models.SaveRequest{
		UserID:  e.identity.UserID,
		Data:    data,
		Submit:  false,
		Version: e.seq.Inc(),
	}

	e.saves.Add(1)
	go func() {
		defer e.saves.Done()

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.AutosaveTimeout)
		defer cancel()

		if _, err := e.backend.SaveApplication(saveCtx, req); err != nil {
			outcome := metrics.OutcomeFailure
			if errors.HasCode(err, errors.ErrCodeStaleWrite) {
				outcome = metrics.OutcomeStale
			}
			metrics.AutosaveTotal.WithLabelValues(outcome).Inc()
			e.logger.Warn("Autosave failed", map[string]interface{}{
				"version": req.Version,
				"error":   err,
			})
			return
		}
		metrics.AutosaveTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		e.logger.Debug("Draft autosaved", map[string]interface{}{"version": req.Version})
	}()
}

// Back moves to the previous active step, stopping at the first one.
func (e *Engine) Back() flow.Step {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.resolveLocked()
	if snap.index > 0 {
		snap.index--
		e.index = snap.index
		e.currentID = snap.step().ID
	}
	metrics.NavigationTotal.WithLabelValues("back", metrics.OutcomeSuccess).Inc()
	return snap.step()
}

// JumpTo moves to the active step with stepID without touching any data.
// An unknown or inactive id leaves the position unchanged and returns false.
func (e *Engine) JumpTo(stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.resolveLocked()
	idx := flow.IndexOf(snap.steps, stepID)
	if idx < 0 {
		metrics.NavigationTotal.WithLabelValues("jump", metrics.OutcomeSkipped).Inc()
		_, declared := snap.flow.Step(stepID)
		e.logger.Info("Jump target is not an active step", map[string]interface{}{
			"stepId":   stepID,
			"flowId":   snap.flow.ID,
			"declared": declared,
		})
		return false
	}
	e.index = idx
	e.currentID = stepID
	metrics.NavigationTotal.WithLabelValues("jump", metrics.OutcomeSuccess).Inc()
	return true
}

// Wait blocks until every background autosave has finished.
func (e *Engine) Wait() {
	e.saves.Wait()
}

// Submitted reports whether the final submit succeeded.
func (e *Engine) Submitted() bool {
	return e.state.Submitted()
}
