package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktracker/internal/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskChanges lists the columns an update writes. Unset fields are left
// untouched; Null clears a nullable column.
type TaskChanges struct {
	Title       models.Optional[string]
	Description models.Optional[string]
	PriorityID  models.Optional[int64]
	AssigneeID  models.Optional[int64]
	DueDate     models.Optional[time.Time]
}

func (r *TaskRepository) StatusByName(ctx context.Context, name string) (*models.Status, error) {
	var s models.Status
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM statuses WHERE name = $1`, name).Scan(&s.ID, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select status: %w", err)
	}
	return &s, nil
}

func (r *TaskRepository) PriorityExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, `SELECT 1 FROM priorities WHERE id = $1`, id)
}

func (r *TaskRepository) Statuses(ctx context.Context) ([]models.Status, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM statuses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	defer rows.Close()

	statuses := []models.Status{}
	for rows.Next() {
		var s models.Status
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func (r *TaskRepository) Priorities(ctx context.Context) ([]models.Priority, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, level FROM priorities ORDER BY level ASC`)
	if err != nil {
		return nil, fmt.Errorf("select priorities: %w", err)
	}
	defer rows.Close()

	priorities := []models.Priority{}
	for rows.Next() {
		var p models.Priority
		if err := rows.Scan(&p.ID, &p.Name, &p.Level); err != nil {
			return nil, fmt.Errorf("scan priority: %w", err)
		}
		priorities = append(priorities, p)
	}
	return priorities, rows.Err()
}

// Create inserts t and fills in its ID.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	t.CreatedAt = dbTime(t.CreatedAt)
	t.UpdatedAt = dbTime(t.UpdatedAt)
	if t.DueDate.Valid {
		t.DueDate.Time = dbTime(t.DueDate.Time)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (creator_id, assignee_id, status_id, priority_id, title, description, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		t.CreatorID, t.AssigneeID, t.StatusID, t.PriorityID,
		t.Title, t.Description, t.DueDate, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	err := r.db.QueryRowContext(ctx,
		`SELECT id, creator_id, assignee_id, status_id, priority_id, title, description, due_date, created_at, updated_at
FROM tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.CreatorID, &t.AssigneeID, &t.StatusID, &t.PriorityID,
		&t.Title, &t.Description, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return &t, nil
}

const selectTaskView = `SELECT t.id, t.title, t.description, t.due_date, t.created_at, t.updated_at,
       t.creator_id, t.assignee_id, c.username, a.username, s.name, p.name, p.level
FROM tasks t
JOIN users c ON c.id = t.creator_id
LEFT JOIN users a ON a.id = t.assignee_id
JOIN statuses s ON s.id = t.status_id
LEFT JOIN priorities p ON p.id = t.priority_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskView(row scanner) (*models.TaskView, error) {
	var (
		v                models.TaskView
		description      sql.NullString
		dueDate          sql.NullTime
		assigneeID       sql.NullInt64
		assigneeUsername sql.NullString
		priority         sql.NullString
		priorityLevel    sql.NullInt64
	)
	err := row.Scan(&v.ID, &v.Title, &description, &dueDate, &v.CreatedAt, &v.UpdatedAt,
		&v.CreatorID, &assigneeID, &v.CreatorUsername, &assigneeUsername, &v.Status,
		&priority, &priorityLevel)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		v.Description = &description.String
	}
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		v.DueDate = &d
	}
	if assigneeID.Valid {
		v.AssigneeID = &assigneeID.Int64
	}
	if assigneeUsername.Valid {
		v.AssigneeUsername = &assigneeUsername.String
	}
	if priority.Valid {
		v.Priority = &priority.String
	}
	if priorityLevel.Valid {
		level := int(priorityLevel.Int64)
		v.PriorityLevel = &level
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return &v, nil
}

// GetView returns the task joined with usernames and lookup names.
func (r *TaskRepository) GetView(ctx context.Context, id int64) (*models.TaskView, error) {
	v, err := scanTaskView(r.db.QueryRowContext(ctx, selectTaskView+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select task view: %w", err)
	}
	return v, nil
}

// Update writes the set fields of ch plus updated_at.
func (r *TaskRepository) Update(ctx context.Context, id int64, ch TaskChanges, now time.Time) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if ch.Title.Set {
		add("title", ch.Title.Value)
	}
	if ch.Description.Set {
		add("description", sql.NullString{String: ch.Description.Value, Valid: !ch.Description.Null})
	}
	if ch.PriorityID.Set {
		add("priority_id", sql.NullInt64{Int64: ch.PriorityID.Value, Valid: !ch.PriorityID.Null})
	}
	if ch.AssigneeID.Set {
		add("assignee_id", sql.NullInt64{Int64: ch.AssigneeID.Value, Valid: !ch.AssigneeID.Null})
	}
	if ch.DueDate.Set {
		add("due_date", sql.NullTime{Time: dbTime(ch.DueDate.Value), Valid: !ch.DueDate.Null})
	}
	add("updated_at", dbTime(now))

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return r.execOne(ctx, query, args...)
}

func (r *TaskRepository) SetStatus(ctx context.Context, id, statusID int64, now time.Time) error {
	return r.execOne(ctx, `UPDATE tasks SET status_id = $1, updated_at = $2 WHERE id = $3`,
		statusID, dbTime(now), id)
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM tasks WHERE id = $1`, id)
}

func (r *TaskRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec task statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("exec task statement: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the tasks userID created or is assigned to, narrowed by f.
// Prioritised tasks come first by level, unprioritised ones last.
func (r *TaskRepository) List(ctx context.Context, userID int64, f models.TaskFilter) ([]models.TaskView, error) {
	args := []any{userID}
	where := []string{"(t.creator_id = $1 OR t.assignee_id = $1)"}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("s.name = $%d", f.Status)
	}
	if f.Priority != "" {
		add("p.name = $%d", f.Priority)
	}
	switch f.Assignee {
	case models.AssigneeMe:
		where = append(where, "t.assignee_id = $1")
	case models.AssigneeUnassigned:
		where = append(where, "t.assignee_id IS NULL")
	case models.AssigneeCreated:
		where = append(where, "t.creator_id = $1")
	}
	if f.Title != "" {
		add(`LOWER(t.title) LIKE $%d ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.Title))+"%")
	}
	if f.DueDateStart != nil {
		add("t.due_date >= $%d", dbTime(*f.DueDateStart))
	}
	if f.DueDateEnd != nil {
		add("t.due_date <= $%d", dbTime(*f.DueDateEnd))
	}
	if f.CreatedAtStart != nil {
		add("t.created_at >= $%d", dbTime(*f.CreatedAtStart))
	}
	if f.CreatedAtEnd != nil {
		add("t.created_at <= $%d", dbTime(*f.CreatedAtEnd))
	}

	query := selectTaskView + "\nWHERE " + strings.Join(where, " AND ") +
		"\nORDER BY p.level DESC NULLS LAST, t.created_at DESC, t.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.TaskView{}
	for rows.Next() {
		v, err := scanTaskView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *v)
	}
	return tasks, rows.Err()
}

// CountByStatus counts every task userID created or is assigned to, per
// status name. Every seeded status is present, zero when unused.
func (r *TaskRepository) CountByStatus(ctx context.Context, userID int64) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.name, COUNT(t.id)
FROM statuses s
LEFT JOIN tasks t ON t.status_id = s.id AND (t.creator_id = $1 OR t.assignee_id = $1)
GROUP BY s.id, s.name
ORDER BY s.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats[name] = count
	}
	return stats, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
