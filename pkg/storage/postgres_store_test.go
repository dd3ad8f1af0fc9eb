package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flora-crawler/pkg/utils"
)

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

type fakeQuerier struct {
	execSQL  []string
	querySQL string
	args     []any
	row      fakeRow
	execErr  error
	closed   bool
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.execSQL = append(q.execSQL, sql)
	return pgconn.CommandTag{}, q.execErr
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.querySQL = sql
	q.args = args
	return q.row
}

func (q *fakeQuerier) Close() { q.closed = true }

func TestPostgresRecordStore_Save(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{id: 7}}
	store := newPostgresRecordStore(q, "flowers", testLogger())

	id, err := store.Save(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	assert.Contains(t, q.querySQL, `INSERT INTO "flowers"`)
	assert.Contains(t, q.querySQL, "ON CONFLICT (source)")
	require.Len(t, q.args, 11)
	assert.Equal(t, pageA, q.args[0])
	assert.Equal(t, "Clematis", q.args[1])
	assert.JSONEq(t, `{"Sun":["Full sun"],"Soil":["Moist","well drained"]}`, string(q.args[6].([]byte)))
	assert.JSONEq(t, `{}`, string(q.args[7].([]byte)))
	assert.JSONEq(t, `["Nelly Moser"]`, string(q.args[10].([]byte)))

	require.NoError(t, store.Close())
	assert.True(t, q.closed)
}

func TestPostgresRecordStore_SaveError(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}
	store := newPostgresRecordStore(q, "flowers", testLogger())

	_, err := store.Save(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSave)
	assert.Equal(t, "Save_Database", utils.CategorizeError(err))
}

func TestPostgresRecordStore_EnsureSchema(t *testing.T) {
	q := &fakeQuerier{}
	store := newPostgresRecordStore(q, `odd"name`, testLogger())

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.Len(t, q.execSQL, 1)
	assert.Contains(t, q.execSQL[0], `CREATE TABLE IF NOT EXISTS "odd""name"`)

	q.execErr = errors.New("permission denied")
	err := store.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, utils.ErrDatabase)
}

// Runs against a real server when FLORA_TEST_PG_DSN is set
func TestPostgresRecordStore_Integration(t *testing.T) {
	dsn := os.Getenv("FLORA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FLORA_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	table := "flowers_test_" + strings.ReplaceAll(strings.ToLower(t.Name()), "/", "_")

	store, err := NewPostgresRecordStore(ctx, dsn, table, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.db.Exec(ctx, "DROP TABLE IF EXISTS "+store.table)
		store.Close()
	})

	first, err := store.Save(ctx, sampleRecord())
	require.NoError(t, err)
	second, err := store.Save(ctx, sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, first, second, "saving the same source twice keeps its id")
}
