// internal/models/draft.go
package models

import (
	"encoding/json"
	"time"
)

// Draft is the persisted snapshot for one user.
type Draft struct {
	UserID      string          `json:"userId"`
	Data        json.RawMessage `json:"data"`
	Submitted   bool            `json:"submitted"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
}

// Empty reports whether the draft carries no application data.
func (d *Draft) Empty() bool {
	if d == nil || len(d.Data) == 0 {
		return true
	}
	s := string(d.Data)
	return s == "null" || s == "{}"
}

// SaveRequest is the saveApplication payload. Data is always the full
// snapshot; Version increases monotonically per session.
type SaveRequest struct {
	UserID  string          `json:"userId"`
	Data    json.RawMessage `json:"data"`
	Submit  bool            `json:"submit"`
	Version int64           `json:"version"`
}

// Identity is what a resume or bearer token decodes to.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}
