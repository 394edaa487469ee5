// Package tasks implements task operations on top of the store: the
// creator/assignee permission gate, reference validation, cache
// invalidation and event publication.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/pkg/logger"
)

type TaskStore interface {
	StatusByName(ctx context.Context, name string) (*models.Status, error)
	PriorityExists(ctx context.Context, id int64) (bool, error)
	Statuses(ctx context.Context) ([]models.Status, error)
	Priorities(ctx context.Context) ([]models.Priority, error)
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetView(ctx context.Context, id int64) (*models.TaskView, error)
	Update(ctx context.Context, id int64, ch repository.TaskChanges, now time.Time) error
	SetStatus(ctx context.Context, id, statusID int64, now time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, userID int64, f models.TaskFilter) ([]models.TaskView, error)
	CountByStatus(ctx context.Context, userID int64) (map[string]int64, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	ListSummaries(ctx context.Context) ([]models.UserSummary, error)
}

// Publisher receives every task event after the mutation is stored.
type Publisher interface {
	Broadcast(ctx context.Context, event models.TaskEvent)
}

// Cache holds enriched task views by id.
type Cache interface {
	Get(ctx context.Context, id int64) (*models.TaskView, bool)
	Set(ctx context.Context, v *models.TaskView)
	Delete(ctx context.Context, id int64)
}

type CreateInput struct {
	Title       string
	Description *string
	PriorityID  *int64
	AssigneeID  *int64
	DueDate     *time.Time
}

// UpdateInput carries tri-state fields: unset fields are untouched and a
// null clears the column.
type UpdateInput struct {
	Title       models.Optional[string]
	Description models.Optional[string]
	PriorityID  models.Optional[int64]
	AssigneeID  models.Optional[int64]
	DueDate     models.Optional[time.Time]
}

type ListResult struct {
	Tasks []models.TaskView `json:"tasks"`
	Stats map[string]int64  `json:"stats"`
}

type Metadata struct {
	Priorities []models.Priority    `json:"priorities"`
	Statuses   []models.Status      `json:"statuses"`
	Users      []models.UserSummary `json:"users"`
}

type Service struct {
	store     TaskStore
	users     UserDirectory
	publisher Publisher
	cache     Cache
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store TaskStore, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		users:     users,
		publisher: nopPublisher{},
		cache:     nopCache{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new "To Do" task owned by actorID.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*models.TaskView, error) {
	if in.Title == "" {
		return nil, apperrors.ErrTitleRequired
	}

	status, err := s.store.StatusByName(ctx, models.StatusToDo)
	if errors.Is(err, repository.ErrNotFound) {
		logger.ErrorLogger.Error("Default status missing", zap.String("status", models.StatusToDo))
		return nil, apperrors.ErrDefaultStatusMissing
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.checkReferences(ctx, in.AssigneeID, in.PriorityID); err != nil {
		return nil, err
	}

	now := s.now()
	task := &models.Task{
		CreatorID: actorID,
		StatusID:  status.ID,
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.AssigneeID != nil {
		task.AssigneeID = sql.NullInt64{Int64: *in.AssigneeID, Valid: true}
	}
	if in.PriorityID != nil {
		task.PriorityID = sql.NullInt64{Int64: *in.PriorityID, Valid: true}
	}
	if in.Description != nil {
		task.Description = sql.NullString{String: *in.Description, Valid: true}
	}
	if in.DueDate != nil {
		task.DueDate = sql.NullTime{Time: *in.DueDate, Valid: true}
	}

	if err := s.store.Create(ctx, task); err != nil {
		return nil, apperrors.Internal(err)
	}

	view, err := s.store.GetView(ctx, task.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	logger.AuditLogger.Info("Task created", zap.Int64("task_id", task.ID), zap.Int64("user_id", actorID))
	s.publish(ctx, models.TaskCreated, actorID, view)
	return view, nil
}

// Update writes the provided fields. Creator or assignee only.
func (s *Service) Update(ctx context.Context, actorID, taskID int64, in UpdateInput) (*models.TaskView, error) {
	if in.Title.Set && (in.Title.Null || in.Title.Value == "") {
		return nil, apperrors.ErrTitleRequired
	}

	if _, err := s.load(ctx, actorID, taskID, OpUpdate); err != nil {
		return nil, err
	}

	var assigneeID, priorityID *int64
	if in.AssigneeID.Set && !in.AssigneeID.Null {
		assigneeID = &in.AssigneeID.Value
	}
	if in.PriorityID.Set && !in.PriorityID.Null {
		priorityID = &in.PriorityID.Value
	}
	if err := s.checkReferences(ctx, assigneeID, priorityID); err != nil {
		return nil, err
	}

	err := s.store.Update(ctx, taskID, repository.TaskChanges(in), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Delete(ctx, taskID)

	return s.afterMutation(ctx, models.TaskUpdated, actorID, taskID)
}

// ChangeStatus moves a task to the named status. Creator or assignee only.
func (s *Service) ChangeStatus(ctx context.Context, actorID, taskID int64, statusName string) (*models.TaskView, error) {
	if _, err := s.load(ctx, actorID, taskID, OpChangeStatus); err != nil {
		return nil, err
	}

	status, err := s.store.StatusByName(ctx, statusName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrInvalidStatus
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	err = s.store.SetStatus(ctx, taskID, status.ID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Delete(ctx, taskID)

	return s.afterMutation(ctx, models.TaskStatusChanged, actorID, taskID)
}

// Delete removes a task. Creator only. The published event carries the
// task as it was just before removal.
func (s *Service) Delete(ctx context.Context, actorID, taskID int64) error {
	if _, err := s.load(ctx, actorID, taskID, OpDelete); err != nil {
		return err
	}

	snapshot, err := s.store.GetView(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrTaskNotFound
	}
	if err != nil {
		return apperrors.Internal(err)
	}

	err = s.store.Delete(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrTaskNotFound
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	s.cache.Delete(ctx, taskID)

	logger.AuditLogger.Info("Task deleted", zap.Int64("task_id", taskID), zap.Int64("user_id", actorID))
	s.publish(ctx, models.TaskDeleted, actorID, snapshot)
	return nil
}

// Get returns one task if actorID is its creator or assignee.
func (s *Service) Get(ctx context.Context, actorID, taskID int64) (*models.TaskView, error) {
	view, ok := s.cache.Get(ctx, taskID)
	if !ok {
		var err error
		view, err = s.store.GetView(ctx, taskID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		s.cache.Set(ctx, view)
	}

	if !view.VisibleTo(actorID) {
		logger.SecurityLogger.Warn("Task read denied", zap.Int64("task_id", taskID), zap.Int64("user_id", actorID))
		return nil, apperrors.ErrPermissionDenied
	}
	return view, nil
}

// List returns the filtered tasks actorID can see. Stats always cover the
// whole creator-or-assignee scope and ignore the filter.
func (s *Service) List(ctx context.Context, actorID int64, f models.TaskFilter) (*ListResult, error) {
	tasks, err := s.store.List(ctx, actorID, f)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	stats, err := s.store.CountByStatus(ctx, actorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &ListResult{Tasks: tasks, Stats: stats}, nil
}

func (s *Service) Metadata(ctx context.Context) (*Metadata, error) {
	priorities, err := s.store.Priorities(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	statuses, err := s.store.Statuses(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	users, err := s.users.ListSummaries(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Metadata{Priorities: priorities, Statuses: statuses, Users: users}, nil
}

func (s *Service) load(ctx context.Context, actorID, taskID int64, op Operation) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := Authorize(actorID, task, op); err != nil {
		logger.SecurityLogger.Warn("Task mutation denied",
			zap.Int64("task_id", taskID),
			zap.Int64("user_id", actorID),
			zap.Int("op", int(op)),
		)
		return nil, err
	}
	return task, nil
}

// checkReferences validates the assignee and then the priority, before
// anything is written.
func (s *Service) checkReferences(ctx context.Context, assigneeID, priorityID *int64) error {
	if assigneeID != nil {
		ok, err := s.users.Exists(ctx, *assigneeID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !ok {
			return apperrors.ErrAssigneeNotFound
		}
	}
	if priorityID != nil {
		ok, err := s.store.PriorityExists(ctx, *priorityID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !ok {
			return apperrors.ErrPriorityNotFound
		}
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, typ models.TaskEventType, actorID, taskID int64) (*models.TaskView, error) {
	view, err := s.store.GetView(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	logger.AuditLogger.Info("Task changed",
		zap.String("event", string(typ)),
		zap.Int64("task_id", taskID),
		zap.Int64("user_id", actorID),
	)
	s.publish(ctx, typ, actorID, view)
	return view, nil
}

func (s *Service) publish(ctx context.Context, typ models.TaskEventType, actorID int64, view *models.TaskView) {
	s.publisher.Broadcast(ctx, models.TaskEvent{
		Type:      typ,
		TaskID:    view.ID,
		Task:      view,
		UserID:    actorID,
		Timestamp: s.now().UTC(),
	})
}

type nopPublisher struct{}

func (nopPublisher) Broadcast(context.Context, models.TaskEvent) {}

type nopCache struct{}

func (nopCache) Get(context.Context, int64) (*models.TaskView, bool) { return nil, false }
func (nopCache) Set(context.Context, *models.TaskView)              {}
func (nopCache) Delete(context.Context, int64)                      {}
