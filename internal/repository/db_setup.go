package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id {pk},
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name TEXT,
    created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS statuses (
    id {ref} PRIMARY KEY,
    name TEXT NOT NULL UNIQUE CHECK (name IN ('To Do', 'In Progress', 'Completed'))
)`,
	`CREATE TABLE IF NOT EXISTS priorities (
    id {ref} PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    level INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
    id {pk},
    creator_id {ref} NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    assignee_id {ref} REFERENCES users (id) ON DELETE SET NULL,
    status_id {ref} NOT NULL REFERENCES statuses (id),
    priority_id {ref} REFERENCES priorities (id),
    title TEXT NOT NULL,
    description TEXT,
    due_date {ts},
    created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS sessions (
    id {pk},
    user_id {ref} NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    access_expires_at {ts} NOT NULL,
    refresh_expires_at {ts} NOT NULL,
    created_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_access_token ON sessions (access_token)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_refresh_token ON sessions (refresh_token)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_creator_id ON tasks (creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee_id ON tasks (assignee_id)`,
}

// Higher level means higher priority.
var seed = []string{
	`INSERT INTO statuses (id, name) VALUES
    (1, 'To Do'),
    (2, 'In Progress'),
    (3, 'Completed')
ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO priorities (id, name, level) VALUES
    (1, 'Low', 1),
    (2, 'Medium', 2),
    (3, 'High', 3),
    (4, 'Critical', 4)
ON CONFLICT (id) DO NOTHING`,
}

// CreateTablesIfNotExist creates the schema and seeds the fixed statuses and
// priorities. It is safe to run on every start.
func CreateTablesIfNotExist(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, d.replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for _, stmt := range seed {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed lookup tables: %w", err)
		}
	}
	return nil
}

// DeleteAllTables drops every table, children first.
func DeleteAllTables(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"sessions", "tasks", "priorities", "statuses", "users"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
