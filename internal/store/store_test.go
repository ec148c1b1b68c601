package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"application-intake/internal/common/errors"
	"application-intake/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions(strict bool) Options {
	return Options{StrictVersions: strict, Now: func() time.Time { return fixedNow }}
}

func saveRequest(userID, data string, version int64) *models.SaveRequest {
	return &models.SaveRequest{UserID: userID, Data: json.RawMessage(data), Version: version}
}

func createTestRedisStore(t *testing.T, strict bool, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:draft:", ttl, testOptions(strict)), mr
}

// backends returns every store that runs without a mock.
func backends(t *testing.T, strict bool) map[string]DraftStore {
	t.Helper()
	rs, _ := createTestRedisStore(t, strict, 0)
	return map[string]DraftStore{
		"memory": NewMemoryStore(testOptions(strict)),
		"redis":  rs,
	}
}

// ==========================
// Shared Behaviour
// ==========================

func TestStore_GetMissingReturnsNil(t *testing.T) {
	for name, s := range backends(t, false) {
		t.Run(name, func(t *testing.T) {
			d, err := s.Get(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Nil(t, d)
		})
	}
}

func TestStore_SaveThenGet(t *testing.T) {
	for name, s := range backends(t, false) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := s.Save(ctx, saveRequest("u1", `{"role":"founder"}`, 1))
			require.NoError(t, err)
			assert.Equal(t, int64(1), saved.Version)
			assert.Equal(t, fixedNow, saved.UpdatedAt)
			assert.Nil(t, saved.SubmittedAt)

			got, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.JSONEq(t, `{"role":"founder"}`, string(got.Data))
			assert.False(t, got.Submitted)
		})
	}
}

func TestStore_LastWriteWinsWithoutStrictVersions(t *testing.T) {
	for name, s := range backends(t, false) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, saveRequest("u1", `{"founder":{"fullName":"newer"}}`, 5))
			require.NoError(t, err)
			_, err = s.Save(ctx, saveRequest("u1", `{"founder":{"fullName":"older"}}`, 4))
			require.NoError(t, err)

			got, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(4), got.Version)
			assert.JSONEq(t, `{"founder":{"fullName":"older"}}`, string(got.Data))
		})
	}
}

func TestStore_StrictVersionsRejectStaleWrites(t *testing.T) {
	for name, s := range backends(t, true) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, saveRequest("u1", `{"v":5}`, 5))
			require.NoError(t, err)

			for _, v := range []int64{5, 3} {
				_, err = s.Save(ctx, saveRequest("u1", `{"v":0}`, v))
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeStaleWrite), "version %d", v)
			}

			got, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(5), got.Version)
		})
	}
}

func TestStore_SubmittedDraftRejectsFurtherSaves(t *testing.T) {
	for name, s := range backends(t, false) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			req := saveRequest("u1", `{"role":"innovator"}`, 2)
			req.Submit = true
			saved, err := s.Save(ctx, req)
			require.NoError(t, err)
			require.NotNil(t, saved.SubmittedAt)
			assert.True(t, saved.Submitted)

			_, err = s.Save(ctx, saveRequest("u1", `{}`, 3))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationSubmitted))
		})
	}
}

func TestStore_EmptyUserRejected(t *testing.T) {
	for name, s := range backends(t, false) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(context.Background(), saveRequest("", `{}`, 1))
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(testOptions(false))
	ctx := context.Background()
	saved, err := s.Save(ctx, saveRequest("u1", `{"a":1}`, 1))
	require.NoError(t, err)
	saved.Data[1] = 'X'

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.Data))
}

// ==========================
// Redis Tests
// ==========================

func TestRedisStore_TTLOnlyForUnsubmittedDrafts(t *testing.T) {
	s, mr := createTestRedisStore(t, false, time.Hour)
	ctx := context.Background()

	_, err := s.Save(ctx, saveRequest("u1", `{}`, 1))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("test:draft:u1"))

	req := saveRequest("u1", `{"role":"founder"}`, 2)
	req.Submit = true
	_, err = s.Save(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), mr.TTL("test:draft:u1"))
}

func TestRedisStore_CorruptValueReportsUnavailable(t *testing.T) {
	s, mr := createTestRedisStore(t, false, 0)
	require.NoError(t, mr.Set("test:draft:u1", "not json"))

	_, err := s.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))

	_, err = s.Save(context.Background(), saveRequest("u1", `{}`, 1))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
}

func TestRedisStore_GetConnectionError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, "", 0, Options{})

	mock.ExpectGet("intake:draft:u1").SetErr(stderrors.New("connection refused"))

	_, err := s.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
	assert.True(t, errors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Ping(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, "", 0, Options{})

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().SetErr(stderrors.New("down"))
	assert.Error(t, s.Ping(context.Background()))
}

// ==========================
// Postgres Tests
// ==========================

func createTestPostgresStore(t *testing.T, strict bool) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, testOptions(strict)), mock
}

var draftColumns = []string{"data", "submitted", "version", "updated_at", "submitted_at"}

func TestPostgresStore_GetMissing(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM application_drafts WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftColumns))

	d, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetExisting(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM application_drafts WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftColumns).
			AddRow([]byte(`{"role":"founder"}`), true, int64(7), fixedNow, fixedNow))

	d, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "u1", d.UserID)
	assert.True(t, d.Submitted)
	assert.Equal(t, int64(7), d.Version)
	require.NotNil(t, d.SubmittedAt)
	assert.Equal(t, fixedNow, *d.SubmittedAt)
}

func TestPostgresStore_GetError(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM application_drafts")).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.Get(context.Background(), "u1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
}

func TestPostgresStore_SaveInsertsNewDraft(t *testing.T) {
	s, mock := createTestPostgresStore(t, true)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_drafts")).
		WithArgs("u1", []byte(`{"role":"founder"}`), false, int64(1), fixedNow, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := s.Save(context.Background(), saveRequest("u1", `{"role":"founder"}`, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveStaleWriteRollsBack(t *testing.T) {
	s, mock := createTestPostgresStore(t, true)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftColumns).
			AddRow([]byte(`{}`), false, int64(9), fixedNow, nil))
	mock.ExpectRollback()

	_, err := s.Save(context.Background(), saveRequest("u1", `{}`, 8))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStaleWrite))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSubmittedDraftRollsBack(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftColumns).
			AddRow([]byte(`{}`), true, int64(2), fixedNow, fixedNow))
	mock.ExpectRollback()

	_, err := s.Save(context.Background(), saveRequest("u1", `{}`, 3))
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationSubmitted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBeginFails(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)
	mock.ExpectBegin().WillReturnError(fmt.Errorf("too many connections"))

	_, err := s.Save(context.Background(), saveRequest("u1", `{}`, 1))
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreUnavailable))
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	s, mock := createTestPostgresStore(t, false)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS application_drafts")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Instrumentation
// ==========================

func TestInstrument_PassesThrough(t *testing.T) {
	s := Instrument(NewMemoryStore(testOptions(true)))
	assert.Same(t, s, Instrument(s))
	assert.Equal(t, "memory", s.Name())

	ctx := context.Background()
	_, err := s.Save(ctx, saveRequest("u1", `{}`, 2))
	require.NoError(t, err)
	_, err = s.Save(ctx, saveRequest("u1", `{}`, 1))
	assert.True(t, errors.HasCode(err, errors.ErrCodeStaleWrite))

	d, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Version)
}
