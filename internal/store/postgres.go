package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/models"
)

const (
	createDraftsTable = `CREATE TABLE IF NOT EXISTS application_drafts (
	user_id      TEXT PRIMARY KEY,
	data         JSONB NOT NULL,
	submitted    BOOLEAN NOT NULL DEFAULT FALSE,
	version      BIGINT NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL,
	submitted_at TIMESTAMPTZ
)`

	selectDraft = `SELECT data, submitted, version, updated_at, submitted_at
FROM application_drafts WHERE user_id = $1`

	selectDraftForUpdate = selectDraft + ` FOR UPDATE`

	upsertDraft = `INSERT INTO application_drafts (user_id, data, submitted, version, updated_at, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
	data = EXCLUDED.data,
	submitted = EXCLUDED.submitted,
	version = EXCLUDED.version,
	updated_at = EXCLUDED.updated_at,
	submitted_at = EXCLUDED.submitted_at`
)

// PostgresStore keeps drafts in the application_drafts table. Saves lock
// the user's row so the version check and the write are atomic.
type PostgresStore struct {
	db   *sql.DB
	opts Options
}

var _ DraftStore = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts}
}

func (p *PostgresStore) Name() string { return "postgres" }

// EnsureSchema creates the drafts table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createDraftsTable); err != nil {
		return errors.NewStoreUnavailableError(p.Name(), err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(userID string, row rowScanner) (*models.Draft, error) {
	var (
		data        []byte
		submitted   bool
		version     int64
		updatedAt   time.Time
		submittedAt sql.NullTime
	)
	if err := row.Scan(&data, &submitted, &version, &updatedAt, &submittedAt); err != nil {
		return nil, err
	}
	d := &models.Draft{
		UserID:    userID,
		Data:      data,
		Submitted: submitted,
		Version:   version,
		UpdatedAt: updatedAt,
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		d.SubmittedAt = &t
	}
	return d, nil
}

func (p *PostgresStore) Get(ctx context.Context, userID string) (*models.Draft, error) {
	d, err := scanDraft(userID, p.db.QueryRowContext(ctx, selectDraft, userID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailableError(p.Name(), err)
	}
	return d, nil
}

func (p *PostgresStore) Save(ctx context.Context, req *models.SaveRequest) (*models.Draft, error) {
	if req.UserID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStoreUnavailableError(p.Name(), err)
	}
	defer tx.Rollback()

	existing, err := scanDraft(req.UserID, tx.QueryRowContext(ctx, selectDraftForUpdate, req.UserID))
	if stderrors.Is(err, sql.ErrNoRows) {
		existing, err = nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailableError(p.Name(), err)
	}

	draft, err := apply(existing, req, p.opts)
	if err != nil {
		return nil, err
	}

	var submittedAt interface{}
	if draft.SubmittedAt != nil {
		submittedAt = *draft.SubmittedAt
	}
	if _, err := tx.ExecContext(ctx, upsertDraft,
		draft.UserID, []byte(draft.Data), draft.Submitted, draft.Version, draft.UpdatedAt, submittedAt,
	); err != nil {
		return nil, errors.NewStoreUnavailableError(p.Name(), err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStoreUnavailableError(p.Name(), err)
	}
	return draft, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
