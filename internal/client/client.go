// Package client talks to the draft API on behalf of intake sessions.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"application-intake/internal/common/config"
	"application-intake/internal/common/errors"
	commonhttp "application-intake/internal/common/http"
	"application-intake/internal/engine"
	"application-intake/internal/models"
)

// Client implements engine.Backend over HTTP.
type Client struct {
	http    *commonhttp.Client
	baseURL string
	token   string
}

var _ engine.Backend = (*Client)(nil)

type Option func(*Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = commonhttp.NewClientWith(hc) }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:    commonhttp.NewClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig creates a client for the configured backend URL. Requests may
// take as long as a final submit.
func FromConfig(cfg config.FlowConfig, opts ...Option) *Client {
	return New(cfg.BackendURL, config.GetDuration(cfg.SubmitTimeout), opts...)
}

// WithSessionToken returns a copy of c that authenticates as token.
func (c *Client) WithSessionToken(token string) *Client {
	out := *c
	out.token = strings.TrimPrefix(token, "Bearer ")
	return &out
}

func (c *Client) headers() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// FetchApplication returns (nil, nil) on 404.
func (c *Client) FetchApplication(ctx context.Context, userID string) (*models.Draft, error) {
	endpoint := fmt.Sprintf("%s/api/v1/applications/%s", c.baseURL, url.PathEscape(userID))
	resp, err := c.http.DoJSON(ctx, http.MethodGet, endpoint, nil, c.headers())
	if err != nil {
		return nil, errors.NewDraftFetchFailedError(err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var d models.Draft
		if err := resp.Decode(&d); err != nil {
			return nil, errors.NewDraftFetchFailedError(err)
		}
		return &d, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, responseError(resp, errors.NewDraftFetchFailedError)
	}
}

func (c *Client) SaveApplication(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/applications", req, c.headers())
	if err != nil {
		return nil, errors.NewDraftSaveFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, errors.NewDraftSaveFailedError)
	}
	var d models.Draft
	if err := resp.Decode(&d); err != nil {
		return nil, errors.NewDraftSaveFailedError(err)
	}
	return &d, nil
}

// responseError keeps conflict, rejection and auth errors reported by the
// API and wraps everything else with fallback.
func responseError(resp *commonhttp.Response, fallback func(error) *errors.StandardError) error {
	var body struct {
		Error *errors.StandardError `json:"error"`
	}
	if err := resp.Decode(&body); err == nil && body.Error != nil {
		switch body.Error.Code {
		case errors.ErrCodeStaleWrite, errors.ErrCodeApplicationSubmitted,
			errors.ErrCodeSchemaViolation, errors.ErrCodeValidationFailed,
			errors.ErrCodeTokenInvalid, errors.ErrCodeAuthenticationFail, errors.ErrCodeForbidden:
			return body.Error
		}
		return fallback(fmt.Errorf("backend returned %d: %s", resp.StatusCode, body.Error.Code))
	}
	return fallback(fmt.Errorf("backend returned %d", resp.StatusCode))
}
