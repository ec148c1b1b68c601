package resume

import (
	"application-intake/internal/common/config"
	"application-intake/internal/engine"
	"application-intake/internal/models"
)

// ConfigFrom converts the flow section of the service configuration into
// hydrator settings.
func ConfigFrom(cfg config.FlowConfig) (Config, error) {
	track, err := models.ParseTrack(cfg.BaselineTrack)
	if err != nil {
		return Config{}, err
	}
	return Config{
		BaselineTrack: track,
		LoginRedirect: cfg.LoginRedirect,
		FlowRedirect:  cfg.FlowRedirect,
		Engine: engine.Config{
			AutosaveTimeout: config.GetDuration(cfg.AutosaveTimeout),
			SubmitTimeout:   config.GetDuration(cfg.SubmitTimeout),
			SuccessRedirect: cfg.SuccessRedirect,
			LoginRedirect:   cfg.LoginRedirect,
		},
	}, nil
}
