package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/tasks"
)

type taskResponse struct {
	Message string           `json:"message"`
	Task    *models.TaskView `json:"task"`
}

// parseDate accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date, the
// latter read as midnight UTC.
func parseDate(s string) (time.Time, error) {
	t, _, err := parseDateOnly(s)
	return t, err
}

func parseDateOnly(s string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false, apperrors.Wrap(apperrors.ErrInvalidDueDate, err)
	}
	return t, true, nil
}

// parseRangeEnd is parseDate for an inclusive upper bound: a bare date
// covers that whole day.
func parseRangeEnd(s string) (time.Time, error) {
	t, dateOnly, err := parseDateOnly(s)
	if err != nil || !dateOnly {
		return t, err
	}
	return t.Add(24*time.Hour - time.Microsecond), nil
}

func taskID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.ErrInvalidTaskID
	}
	return int64(id), nil
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	type CreateTaskRequest struct {
		Title       string  `json:"title" validate:"required,max=255"`
		Description *string `json:"description" validate:"omitempty,max=1000"`
		PriorityID  *int64  `json:"priority_id"`
		AssigneeID  *int64  `json:"assignee_id"`
		DueDate     *string `json:"due_date"`
	}

	var req CreateTaskRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	in := tasks.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		PriorityID:  req.PriorityID,
		AssigneeID:  req.AssigneeID,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			return err
		}
		in.DueDate = &due
	}

	task, err := h.tasks.Create(c.UserContext(), user.ID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(taskResponse{Message: "Task created successfully", Task: task})
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	f := models.TaskFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Assignee: models.AssigneeFilter(c.Query("assignee")),
		Title:    c.Query("title"),
	}
	switch f.Assignee {
	case models.AssigneeAny, models.AssigneeMe, models.AssigneeUnassigned, models.AssigneeCreated:
	default:
		return apperrors.ErrInvalidFilter
	}

	ranges := []struct {
		key   string
		dst   **time.Time
		parse func(string) (time.Time, error)
	}{
		{"due_date_start", &f.DueDateStart, parseDate},
		{"due_date_end", &f.DueDateEnd, parseRangeEnd},
		{"created_at_start", &f.CreatedAtStart, parseDate},
		{"created_at_end", &f.CreatedAtEnd, parseRangeEnd},
	}
	for _, r := range ranges {
		v := c.Query(r.key)
		if v == "" {
			continue
		}
		t, err := r.parse(v)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidFilter, err)
		}
		*r.dst = &t
	}

	res, err := h.tasks.List(c.UserContext(), user.ID, f)
	if err != nil {
		return err
	}
	if res.Tasks == nil {
		res.Tasks = []models.TaskView{}
	}
	return c.JSON(res)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.tasks.Get(c.UserContext(), user.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	// Absent keys are left alone; explicit nulls clear the column.
	var req struct {
		Title       models.Optional[string] `json:"title"`
		Description models.Optional[string] `json:"description"`
		PriorityID  models.Optional[int64]  `json:"priority_id"`
		AssigneeID  models.Optional[int64]  `json:"assignee_id"`
		DueDate     models.Optional[string] `json:"due_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	}
	if req.Title.Set && !req.Title.Null {
		if err := h.validate.Var(req.Title.Value, "required,max=255"); err != nil {
			return apperrors.Wrap(apperrors.ErrValidation, err)
		}
	}
	if req.Description.Set && !req.Description.Null {
		if err := h.validate.Var(req.Description.Value, "max=1000"); err != nil {
			return apperrors.Wrap(apperrors.ErrValidation, err)
		}
	}

	in := tasks.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		PriorityID:  req.PriorityID,
		AssigneeID:  req.AssigneeID,
	}
	switch {
	case !req.DueDate.Set:
	case req.DueDate.Null || req.DueDate.Value == "":
		in.DueDate = models.Null[time.Time]()
	default:
		due, err := parseDate(req.DueDate.Value)
		if err != nil {
			return err
		}
		in.DueDate = models.Some(due)
	}

	task, err := h.tasks.Update(c.UserContext(), user.ID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(taskResponse{Message: "Task updated successfully", Task: task})
}

func (h *Handler) UpdateTaskStatus(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	type StatusRequest struct {
		Status string `json:"status" validate:"required"`
	}
	var req StatusRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.ChangeStatus(c.UserContext(), user.ID, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(taskResponse{Message: "Task status updated successfully", Task: task})
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(c.UserContext(), user.ID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Task deleted successfully"})
}

// Metadata lists what a task form needs: priorities, statuses and users.
func (h *Handler) Metadata(c *fiber.Ctx) error {
	md, err := h.tasks.Metadata(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(md)
}
