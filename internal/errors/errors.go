package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrTaskNotFound is returned when a task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrForbidden is returned when the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotProjectMember is returned when the caller is not a member of the project.
	ErrNotProjectMember = errors.New("not a project member")
	// ErrInvalidStatusTransition is returned when a task status change violates the workflow.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrTaskNotCompleted is returned when approve/reject is attempted on a task not in completed status.
	ErrTaskNotCompleted = errors.New("task is not completed")
	// ErrEmailTaken is returned when registering or updating to an email already in use.
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidRole is returned when an unknown role value is supplied.
	ErrInvalidRole = errors.New("invalid role")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Not-found wins over
// forbidden only when the row truly does not exist; scoped-out resources
// surface as forbidden without leaking their contents.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrProjectNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "PROJECT_NOT_FOUND")
	case errors.Is(err, ErrTaskNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "TASK_NOT_FOUND")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotProjectMember):
		return NewHTTPError(http.StatusForbidden, err.Error(), "NOT_PROJECT_MEMBER")
	case errors.Is(err, ErrInvalidStatusTransition):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_STATUS_TRANSITION")
	case errors.Is(err, ErrTaskNotCompleted):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "TASK_NOT_COMPLETED")
	case errors.Is(err, ErrEmailTaken):
		return NewHTTPError(http.StatusConflict, err.Error(), "EMAIL_TAKEN")
	case errors.Is(err, ErrInvalidRole):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_ROLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
