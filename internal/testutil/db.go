// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/repository"
	"tasktracker/pkg/database"
)

var dbSeq atomic.Int64

// NewDB returns a migrated, seeded in-memory SQLite database private to t.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := database.SQLiteDSN(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)))

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.CreateTablesIfNotExist(context.Background(), db, repository.SQLite))
	return db
}
