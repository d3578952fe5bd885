package handler

import (
	"github.com/labstack/echo/v4"

	apperrors "taskhub/internal/errors"
)

// domainError maps a service error onto the standard HTTP error envelope.
func domainError(err error) *echo.HTTPError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// PaginatedResponse wraps list payloads with their total row count.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}
