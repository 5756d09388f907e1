package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_test?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(2)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploads_test (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM uploads_test`)
	require.NoError(t, err)
	return db
}

func rowCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM uploads_test`).Scan(&n))
	return n
}

func TestWithTxCommit(t *testing.T) {
	db := openTestDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO uploads_test(name) VALUES ('a')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, rowCount(t, db))
}

func TestWithTxRollbackOnError(t *testing.T) {
	db := openTestDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO uploads_test(name) VALUES ('a')`); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, rowCount(t, db))
}

func TestWithTxRollbackOnPanic(t *testing.T) {
	db := openTestDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		require.Equal(t, 0, rowCount(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO uploads_test(name) VALUES ('a')`); err != nil {
			return err
		}
		panic("kaput")
	})
}

func TestWithTxBeginError(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}
