// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrGatewayTimeout  = errors.New("upstream service timed out")

	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrStorageUnavailable  = errors.New("file storage is not configured")

	ErrNotFound     = store.ErrNotFound
	ErrAlreadyVoted = store.ErrAlreadyVoted
	ErrDuplicate    = store.ErrDuplicate
)

// ValidationError carries per-field details and matches ErrValidation.
type ValidationError struct {
	Message string
	Fields  []utils.ValidationError
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func validateRequest(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &ValidationError{Fields: utils.GetValidationErrors(err)}
	}
	return nil
}

// Actor is the caller behind an audited mutation.
type Actor struct {
	Email     string
	IPAddress string
	UserAgent string
}

func (a Actor) audit(action string) *models.AuditLog {
	return &models.AuditLog{
		ActorEmail: a.Email,
		Action:     action,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
	}
}

// SystemActor signs changes made by the server itself.
var SystemActor = Actor{Email: "system@apporbit"}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
