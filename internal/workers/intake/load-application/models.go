// internal/workers/intake/load-application/models.go
package loadapplication

import "application-intake/internal/models"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	UserID      string                 `json:"userId"`
	Version     int64                  `json:"version"`
	SubmittedAt string                 `json:"submittedAt"` // ISO 8601
	Summary     map[string]interface{} `json:"summary"`
	Application models.ApplicationData `json:"application"`
}
