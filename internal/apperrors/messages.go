package apperrors

// Caller-facing failures shared by the auth and task services.
var (
	ErrAuthRequired          = New(KindAuthenticationRequired, "Authentication required")
	ErrNoToken               = New(KindAuthenticationRequired, "No token provided")
	ErrInvalidToken          = New(KindAuthenticationRequired, "Invalid or expired token")
	ErrInvalidCredentials    = New(KindAuthenticationRequired, "Invalid credentials")
	ErrNoRefreshToken        = New(KindAuthenticationRequired, "Refresh token not provided")
	ErrRefreshSessionInvalid = New(KindAuthenticationRequired, "Invalid or expired refresh token")
	ErrRefreshTokenMalformed = New(KindAuthenticationRequired, "Invalid refresh token")
	ErrRefreshUserNotFound   = New(KindAuthenticationRequired, "User not found")

	ErrPermissionDenied = New(KindPermissionDenied, "Permission denied")
	ErrCreatorOnly      = New(KindPermissionDenied, "Only the task creator can delete this task")

	ErrTaskNotFound     = New(KindNotFound, "Task not found")
	ErrUserNotFound     = New(KindNotFound, "User not found")
	ErrPriorityNotFound = New(KindValidation, "Priority not found")
	ErrAssigneeNotFound = New(KindValidation, "Assignee not found")
	ErrInvalidStatus    = New(KindValidation, "Invalid status")
	ErrInvalidTaskID    = New(KindValidation, "Invalid task ID")
	ErrInvalidDueDate   = New(KindValidation, "Invalid due date")
	ErrInvalidFilter    = New(KindValidation, "Invalid filter")
	ErrBadRequest       = New(KindValidation, "Bad request")
	ErrValidation       = New(KindValidation, "Validation error")
	ErrTitleRequired    = New(KindValidation, "Title is required")

	ErrUsernameTaken = New(KindConflict, "Username already exists")
	ErrEmailTaken    = New(KindConflict, "Email already exists")

	ErrDefaultStatusMissing = New(KindInternal, "Default status not found")
)
