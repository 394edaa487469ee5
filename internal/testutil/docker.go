package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/repository"
)

// pool connects to the local Docker daemon, skipping the test when there is
// none or when running with -short.
func pool(t testing.TB) *dockertest.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	p, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := p.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	p.MaxWait = 90 * time.Second
	return p
}

func run(t testing.TB, p *dockertest.Pool, opts *dockertest.RunOptions) *dockertest.Resource {
	t.Helper()
	res, err := p.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	_ = res.Expire(180)
	t.Cleanup(func() { _ = p.Purge(res) })
	return res
}

// NewPostgres starts a throwaway Postgres container and returns a migrated
// connection to it.
func NewPostgres(t testing.TB) *sql.DB {
	t.Helper()
	p := pool(t)
	res := run(t, p, &dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=tasktracker",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=tasktracker",
		},
	})

	dsn := fmt.Sprintf("host=localhost port=%s user=tasktracker password=secret dbname=tasktracker sslmode=disable",
		res.GetPort("5432/tcp"))
	var db *sql.DB
	require.NoError(t, p.Retry(func() error {
		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		return db.Ping()
	}))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.CreateTablesIfNotExist(context.Background(), db, repository.Postgres))
	return db
}

// NewRedis starts a throwaway Redis container.
func NewRedis(t testing.TB) *redis.Client {
	t.Helper()
	p := pool(t)
	res := run(t, p, &dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"})

	client := redis.NewClient(&redis.Options{Addr: "localhost:" + res.GetPort("6379/tcp")})
	require.NoError(t, p.Retry(func() error {
		return client.Ping(context.Background()).Err()
	}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}
