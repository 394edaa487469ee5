package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/internal/testutil"
)

func createUser(t *testing.T, users *repository.UserRepository, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func createTask(t *testing.T, tasks *repository.TaskRepository, creator int64, assignee *int64, priority *int64, title string, at time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		CreatorID: creator,
		StatusID:  1,
		Title:     title,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if assignee != nil {
		task.AssigneeID = sql.NullInt64{Int64: *assignee, Valid: true}
	}
	if priority != nil {
		task.PriorityID = sql.NullInt64{Int64: *priority, Valid: true}
	}
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func ptr[T any](v T) *T { return &v }

func TestSchemaIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, repository.CreateTablesIfNotExist(ctx, db, repository.SQLite))

	tasks := repository.NewTaskRepository(db)
	statuses, err := tasks.Statuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Status{{ID: 1, Name: "To Do"}, {ID: 2, Name: "In Progress"}, {ID: 3, Name: "Completed"}}, statuses)

	priorities, err := tasks.Priorities(ctx)
	require.NoError(t, err)
	require.Len(t, priorities, 4)
	assert.Equal(t, "Low", priorities[0].Name)
	assert.Equal(t, 4, priorities[3].Level)
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)

	alice := createUser(t, users, "alice")
	assert.NotZero(t, alice.ID)

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.False(t, got.FullName.Valid)

	_, err = users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = users.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrDuplicateUsername)

	err = users.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	exists, err := users.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)

	summaries, err := users.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "alice", summaries[0].Username)
}

func TestSessionRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	sessions := repository.NewSessionRepository(db)

	u := createUser(t, users, "bob")
	now := time.Now()
	s := &models.Session{
		UserID:           u.ID,
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, sessions.Create(ctx, s))

	found, err := sessions.FindByAccessToken(ctx, "access-1", u.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
	assert.True(t, s.AccessExpiresAt.Equal(found.AccessExpiresAt))

	_, err = sessions.FindByAccessToken(ctx, "access-1", u.ID+1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	found.AccessToken = "access-2"
	found.RefreshToken = "refresh-2"
	require.NoError(t, sessions.Rotate(ctx, found))

	_, err = sessions.FindByRefreshToken(ctx, "refresh-1", u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	rotated, err := sessions.FindByRefreshToken(ctx, "refresh-2", u.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, rotated.ID)

	assert.ErrorIs(t, sessions.Rotate(ctx, &models.Session{ID: 999}), repository.ErrNotFound)
}

func TestSessionDeleteExpired(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	sessions := repository.NewSessionRepository(db)
	u := createUser(t, users, "carol")

	now := time.Now()
	for i, refreshExp := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
		require.NoError(t, sessions.Create(ctx, &models.Session{
			UserID:           u.ID,
			AccessToken:      fmt.Sprintf("a%d", i),
			RefreshToken:     fmt.Sprintf("r%d", i),
			AccessExpiresAt:  refreshExp,
			RefreshExpiresAt: refreshExp,
			CreatedAt:        now,
			UpdatedAt:        now,
		}))
	}

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = sessions.FindByRefreshToken(ctx, "r1", u.ID)
	assert.NoError(t, err)
}

func TestTaskRepositoryCRUD(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	tasks := repository.NewTaskRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	task := createTask(t, tasks, alice.ID, &bob.ID, ptr[int64](3), "Write report", time.Now())

	view, err := tasks.GetView(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", view.Title)
	assert.Equal(t, "alice", view.CreatorUsername)
	require.NotNil(t, view.AssigneeUsername)
	assert.Equal(t, "bob", *view.AssigneeUsername)
	assert.Equal(t, models.StatusToDo, view.Status)
	require.NotNil(t, view.Priority)
	assert.Equal(t, "High", *view.Priority)
	assert.Nil(t, view.Description)

	due := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	err = tasks.Update(ctx, task.ID, repository.TaskChanges{
		Description: models.Some("details"),
		PriorityID:  models.Null[int64](),
		AssigneeID:  models.Null[int64](),
		DueDate:     models.Some(due),
	}, time.Now())
	require.NoError(t, err)

	view, err = tasks.GetView(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", view.Title)
	require.NotNil(t, view.Description)
	assert.Equal(t, "details", *view.Description)
	assert.Nil(t, view.Priority)
	assert.Nil(t, view.AssigneeID)
	require.NotNil(t, view.DueDate)
	assert.True(t, due.Equal(*view.DueDate))

	require.NoError(t, tasks.SetStatus(ctx, task.ID, 3, time.Now()))
	row, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, row.StatusID)

	require.NoError(t, tasks.Delete(ctx, task.ID))
	_, err = tasks.GetView(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, task.ID), repository.ErrNotFound)
	assert.ErrorIs(t, tasks.Update(ctx, task.ID, repository.TaskChanges{}, time.Now()), repository.ErrNotFound)
}

func TestTaskRepositoryCascades(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	tasks := repository.NewTaskRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	assigned := createTask(t, tasks, alice.ID, &bob.ID, nil, "assigned to bob", time.Now())
	owned := createTask(t, tasks, bob.ID, nil, nil, "owned by bob", time.Now())

	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, bob.ID)
	require.NoError(t, err)

	row, err := tasks.GetByID(ctx, assigned.ID)
	require.NoError(t, err)
	assert.False(t, row.AssigneeID.Valid)

	_, err = tasks.GetByID(ctx, owned.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTaskRepositoryListScopeAndOrder(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	tasks := repository.NewTaskRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	carol := createUser(t, users, "carol")

	base := time.Now().Add(-time.Hour)
	low := createTask(t, tasks, alice.ID, nil, ptr[int64](1), "low", base)
	none := createTask(t, tasks, alice.ID, nil, nil, "no priority", base.Add(time.Minute))
	critical := createTask(t, tasks, bob.ID, &alice.ID, ptr[int64](4), "critical from bob", base.Add(2*time.Minute))
	newerLow := createTask(t, tasks, alice.ID, &bob.ID, ptr[int64](1), "newer low", base.Add(3*time.Minute))
	createTask(t, tasks, carol.ID, nil, ptr[int64](4), "carol private", base)

	list, err := tasks.List(ctx, alice.ID, models.TaskFilter{})
	require.NoError(t, err)
	ids := make([]int64, len(list))
	for i, v := range list {
		ids[i] = v.ID
	}
	assert.Equal(t, []int64{critical.ID, newerLow.ID, low.ID, none.ID}, ids)

	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{Assignee: models.AssigneeMe})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, critical.ID, list[0].ID)

	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{Assignee: models.AssigneeUnassigned})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{Assignee: models.AssigneeCreated})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{Priority: "Low"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{Title: "LOW"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	start := base.Add(90 * time.Second)
	list, err = tasks.List(ctx, alice.ID, models.TaskFilter{CreatedAtStart: &start})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = tasks.List(ctx, carol.ID, models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTaskRepositoryTitleFilterEscapesWildcards(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	tasks := repository.NewTaskRepository(db)

	alice := createUser(t, users, "alice")
	createTask(t, tasks, alice.ID, nil, nil, "100% done", time.Now())
	createTask(t, tasks, alice.ID, nil, nil, "1000 done", time.Now())

	list, err := tasks.List(ctx, alice.ID, models.TaskFilter{Title: "0%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "100% done", list[0].Title)
}

func TestTaskRepositoryCountByStatus(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db, repository.SQLite)
	tasks := repository.NewTaskRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	a := createTask(t, tasks, alice.ID, nil, nil, "a", time.Now())
	createTask(t, tasks, bob.ID, &alice.ID, nil, "b", time.Now())
	createTask(t, tasks, bob.ID, nil, nil, "c", time.Now())
	require.NoError(t, tasks.SetStatus(ctx, a.ID, 2, time.Now()))

	stats, err := tasks.CountByStatus(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"To Do": 1, "In Progress": 1, "Completed": 0}, stats)
}
