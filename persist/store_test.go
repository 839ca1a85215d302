package persist

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/db"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	d, err := db.FromConn(logger.Nop(), nil, conn)
	require.NoError(t, err)
	s, err := NewStore(logger.Nop(), d, nil, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return s, mock
}

func snapshotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"cache_key", "resource", "payload", "updated_at"})
}

func TestStore_Save(t *testing.T) {
	s, mock := newStore(t)
	items := []cache.Dehydrated{
		{Key: querykey.For("jobs").Detail("j1"), Data: json.RawMessage(`{"title":"Tutor"}`), UpdatedAt: now},
		{Key: querykey.For("jobs").Lists(), Data: json.RawMessage(`[]`), UpdatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `query_snapshots` (`cache_key`,`resource`,`payload`,`updated_at`)")).
		WithArgs(items[0].Key.String(), "jobs", []byte(`{"title":"Tutor"}`), now,
			items[1].Key.String(), "jobs", []byte(`[]`), now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := s.Save(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveEmptyOnlyDeletes(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveRollsBack(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := s.Save(context.Background(), []cache.Dehydrated{
		{Key: querykey.For("jobs").Lists(), Data: json.RawMessage(`[]`), UpdatedAt: now},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load(t *testing.T) {
	s, mock := newStore(t)
	detail := querykey.For("jobs").Detail("j1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `query_snapshots` WHERE updated_at >= ? ORDER BY cache_key")).
		WithArgs(now.Add(-24 * time.Hour)).
		WillReturnRows(snapshotRows().
			AddRow(detail.String(), "jobs", []byte(`{"title":"Tutor"}`), now.Add(-time.Hour)).
			AddRow("not a key", "jobs", []byte(`{}`), now).
			AddRow(querykey.For("jobs").Lists().String(), "jobs", []byte(`{broken`), now))

	items, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, detail.Equal(items[0].Key))
	assert.JSONEq(t, `{"title":"Tutor"}`, string(items[0].Data))
	assert.True(t, now.Add(-time.Hour).Equal(items[0].UpdatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Purge(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).
		WillReturnError(errors.New("gone"))
	_, err = s.Purge(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RestoreAndSnapshot(t *testing.T) {
	s, mock := newStore(t)
	qc, err := cache.New(logger.Nop(), nil, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer qc.Close()

	detail := querykey.For("budgets").Detail("b1")
	fetched := now.Add(-10 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `query_snapshots`")).
		WillReturnRows(snapshotRows().AddRow(detail.String(), "budgets", []byte(`{"category":"food"}`), fetched))

	n, err := s.Restore(context.Background(), qc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, ok := qc.Peek(detail)
	require.True(t, ok)
	assert.True(t, snap.HasData)
	assert.True(t, fetched.Equal(snap.UpdatedAt))
	// older than the default stale time
	assert.True(t, snap.Stale)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `query_snapshots`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `query_snapshots`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := s.Snapshot(context.Background(), qc)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.DB = &db.Config{Host: "localhost", User: "app"}
	cfg.MergeDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "studysync", cfg.DB.Database)

	cfg.BatchSize = -1
	assert.Error(t, cfg.Validate())
}
