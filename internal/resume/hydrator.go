// Package resume rebuilds an intake session from a resume token and the
// user's stored draft.
package resume

import (
	"context"
	"fmt"

	"application-intake/internal/application"
	"application-intake/internal/common/auth"
	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/common/metrics"
	"application-intake/internal/engine"
	"application-intake/internal/flow"
	"application-intake/internal/models"
)

// Hydration sources reported in Result and metrics.
const (
	SourceDraft        = "draft"
	SourceBaseline     = "baseline"
	SourceInvalidToken = "invalid_token"
)

// Config controls where hydrated sessions start.
type Config struct {
	BaselineTrack models.Track
	LoginRedirect string
	// FlowRedirect is a format string receiving the flow id.
	FlowRedirect string
	Engine       engine.Config
}

// Result describes a hydrated session.
type Result struct {
	Engine   *engine.Engine
	FlowID   string
	Identity models.Identity
	Redirect string
	Source   string
	// Restored lists the draft domains copied into the state.
	Restored []string
}

// FromDraft reports whether the session was populated from a stored draft.
func (r *Result) FromDraft() bool {
	return r != nil && r.Source == SourceDraft
}

// Hydrator resolves resume tokens into ready-to-use engines.
type Hydrator struct {
	decoder  auth.TokenDecoder
	backend  engine.Backend
	registry *flow.Registry
	cfg      Config
	logger   logger.Logger
	baseLog  logger.Logger
}

func NewHydrator(decoder auth.TokenDecoder, backend engine.Backend, registry *flow.Registry, cfg Config, log logger.Logger) *Hydrator {
	if cfg.LoginRedirect == "" {
		cfg.LoginRedirect = "/login"
	}
	if cfg.FlowRedirect == "" {
		cfg.FlowRedirect = "/apply/%s"
	}
	if cfg.BaselineTrack == "" {
		cfg.BaselineTrack = models.TrackStartup
	}
	return &Hydrator{
		decoder:  decoder,
		backend:  backend,
		registry: registry,
		cfg:      cfg,
		logger:   logger.Component(log, "resume"),
		baseLog:  log,
	}
}

// Hydrate decodes token, resets state and fills it from the user's draft.
//
// An undecodable token returns a TOKEN_INVALID error together with a Result
// redirecting to login; state is left untouched in that case. A missing,
// empty or unreachable draft is not an error: the session starts on the
// baseline flow. Sessions always start at step 0.
func (h *Hydrator) Hydrate(ctx context.Context, token string, state *application.State) (*Result, error) {
	identity, err := h.decoder.Decode(ctx, token)
	if err != nil {
		metrics.HydrateTotal.WithLabelValues(SourceInvalidToken).Inc()
		h.logger.Warn("Resume token rejected", map[string]interface{}{"error": err})
		if !errors.HasCode(err, errors.ErrCodeTokenInvalid) {
			err = errors.NewTokenInvalidError(err.Error())
		}
		return &Result{Redirect: h.cfg.LoginRedirect, Source: SourceInvalidToken}, err
	}

	log := h.logger.WithFields(map[string]interface{}{"userId": identity.UserID})
	state.Reset()

	draft, fetchErr := h.backend.FetchApplication(ctx, identity.UserID)
	switch {
	case fetchErr != nil:
		log.Warn("Draft fetch failed, starting from baseline", map[string]interface{}{"error": fetchErr})
		return h.baseline(state, identity), nil
	case draft.Empty():
		log.Info("No draft stored, starting from baseline", nil)
		return h.baseline(state, identity), nil
	}

	restored, restoreErr := state.Restore(draft.Data)
	if restoreErr != nil {
		log.Warn("Draft partially restored", map[string]interface{}{
			"restored": restored,
			"error":    restoreErr,
		})
	}
	if len(restored) == 0 {
		return h.baseline(state, identity), nil
	}
	if draft.Submitted {
		state.MarkSubmitted()
	}

	f := h.registry.ForRole(state.Role())
	cfg := h.cfg.Engine
	cfg.BaseVersion = draft.Version

	metrics.HydrateTotal.WithLabelValues(SourceDraft).Inc()
	log.Info("Session restored from draft", map[string]interface{}{
		"flowId":   f.ID,
		"restored": restored,
		"version":  draft.Version,
	})

	return &Result{
		Engine:   engine.New(h.registry, state, h.backend, identity, cfg, h.baseLog),
		FlowID:   f.ID,
		Identity: identity,
		Redirect: fmt.Sprintf(h.cfg.FlowRedirect, f.ID),
		Source:   SourceDraft,
		Restored: restored,
	}, nil
}

// baseline starts a fresh session on the baseline role and track.
func (h *Hydrator) baseline(state *application.State, identity models.Identity) *Result {
	role := h.registry.BaselineRole()
	if err := state.SelectRole(role); err != nil {
		h.logger.Error("Failed to apply baseline role", map[string]interface{}{"error": err})
	}
	if err := state.UpdateVenture(application.Patch{"track": string(h.cfg.BaselineTrack)}); err != nil {
		h.logger.Error("Failed to apply baseline track", map[string]interface{}{"error": err})
	}

	f := h.registry.Baseline()
	metrics.HydrateTotal.WithLabelValues(SourceBaseline).Inc()

	return &Result{
		Engine:   engine.New(h.registry, state, h.backend, identity, h.cfg.Engine, h.baseLog),
		FlowID:   f.ID,
		Identity: identity,
		Redirect: fmt.Sprintf(h.cfg.FlowRedirect, f.ID),
		Source:   SourceBaseline,
	}
}
