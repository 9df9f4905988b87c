package remote

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresStore(sqlxDB), mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestPostgresStoreWriteUpserts(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO sync_records").
		WithArgs("attendance/att-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Write(context.Background(), "attendance/att-1", map[string]string{"group_id": "g1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreReadHit(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"group_id":"g1"}`))
	mock.ExpectQuery("SELECT data FROM sync_records").
		WithArgs("attendance/att-1").
		WillReturnRows(rows)

	var out map[string]string
	found, err := store.Read(context.Background(), "attendance/att-1", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "g1", out["group_id"])
}

func TestPostgresStoreReadMiss(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT data FROM sync_records").
		WithArgs("attendance/absent").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	found, err := store.Read(context.Background(), "attendance/absent", nil)
	require.NoError(t, err)
	assert.False(t, found)
}
