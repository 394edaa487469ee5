package tasks

import (
	"tasktracker/internal/apperrors"
	"tasktracker/internal/models"
)

type Operation int

const (
	OpRead Operation = iota
	OpUpdate
	OpChangeStatus
	OpDelete
)

// Authorize decides whether actorID may perform op on task. Deletion is
// reserved for the creator; everything else is open to creator and
// assignee.
func Authorize(actorID int64, task *models.Task, op Operation) error {
	isCreator := task.CreatorID == actorID
	isAssignee := task.AssigneeID.Valid && task.AssigneeID.Int64 == actorID

	switch op {
	case OpDelete:
		if !isCreator {
			return apperrors.ErrCreatorOnly
		}
	default:
		if !isCreator && !isAssignee {
			return apperrors.ErrPermissionDenied
		}
	}
	return nil
}
