package models

import (
	"database/sql"
	"time"
)

// Seeded status names.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	FullName     sql.NullString `json:"full_name"`
	CreatedAt    time.Time      `json:"created_at"`
}

// UserSummary is the public projection of a user offered for assignment.
type UserSummary struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

// Session pairs one issued token pair with its expiry clocks. The token
// columns hold digests of the issued tokens, never the tokens themselves.
type Session struct {
	ID               int64
	UserID           int64
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Status struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Priority struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Task is a row of the tasks table.
type Task struct {
	ID          int64
	CreatorID   int64
	AssigneeID  sql.NullInt64
	StatusID    int64
	PriorityID  sql.NullInt64
	Title       string
	Description sql.NullString
	DueDate     sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskView is a task joined with its creator, assignee, status and priority.
// It is what the API returns and what events carry.
type TaskView struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description"`
	DueDate          *time.Time `json:"due_date"`
	CreatorID        int64      `json:"creator_id"`
	AssigneeID       *int64     `json:"assignee_id"`
	CreatorUsername  string     `json:"creator_username"`
	AssigneeUsername *string    `json:"assignee_username"`
	Status           string     `json:"status"`
	Priority         *string    `json:"priority"`
	PriorityLevel    *int       `json:"priority_level"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// VisibleTo reports whether userID is the creator or the assignee.
func (v *TaskView) VisibleTo(userID int64) bool {
	if v == nil {
		return false
	}
	return v.CreatorID == userID || (v.AssigneeID != nil && *v.AssigneeID == userID)
}

// AssigneeFilter narrows a listing by the caller's relation to the task.
type AssigneeFilter string

const (
	AssigneeAny        AssigneeFilter = ""
	AssigneeMe         AssigneeFilter = "me"
	AssigneeUnassigned AssigneeFilter = "unassigned"
	AssigneeCreated    AssigneeFilter = "created"
)

type TaskFilter struct {
	Status         string
	Priority       string
	Assignee       AssigneeFilter
	Title          string
	DueDateStart   *time.Time
	DueDateEnd     *time.Time
	CreatedAtStart *time.Time
	CreatedAtEnd   *time.Time
}

type TaskEventType string

const (
	TaskCreated       TaskEventType = "TASK_CREATED"
	TaskUpdated       TaskEventType = "TASK_UPDATED"
	TaskStatusChanged TaskEventType = "TASK_STATUS_CHANGED"
	TaskDeleted       TaskEventType = "TASK_DELETED"
)

type TaskEvent struct {
	Type      TaskEventType `json:"type"`
	TaskID    int64         `json:"taskId"`
	Task      *TaskView     `json:"task,omitempty"`
	UserID    int64         `json:"userId"`
	Timestamp time.Time     `json:"timestamp"`
}

// TaskEventMessage is the frame pushed to subscribers.
type TaskEventMessage struct {
	Type TaskEventType `json:"type"`
	Data TaskEvent     `json:"data"`
}
