package app

import (
	"errors"
	"fmt"
	"net/http"

	"pipeline/internal/blob"
	"pipeline/internal/export"
	"pipeline/internal/kanban"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// toDomainError classifies err by the kind it wraps. Unclassified errors
// become a generic 500 so internal detail never reaches the client.
func toDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var kanbanErr *kanban.Error
	message := err.Error()
	if errors.As(err, &kanbanErr) {
		message = kanbanErr.Message
	}
	switch {
	case errors.Is(err, kanban.ErrValidation):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
	case errors.Is(err, kanban.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
	case errors.Is(err, kanban.ErrInvariant):
		return domainError(http.StatusConflict, "INVARIANT_VIOLATION", message, nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported export format", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", message, nil)
	case errors.Is(err, blob.ErrDisabled):
		return domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	return domainError(http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kanban.ErrValidation):
		return "validation"
	case errors.Is(err, kanban.ErrNotFound):
		return "not_found"
	case errors.Is(err, kanban.ErrInvariant):
		return "invariant"
	default:
		return "error"
	}
}
