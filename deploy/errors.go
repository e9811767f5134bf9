package deploy

import (
	"errors"
	"strings"

	"github.com/oar-cd/launchpad/domain"
)

// FormatErrorForUser converts technical errors to user-friendly messages
// This should only be called at the handler level
func FormatErrorForUser(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, domain.ErrMissingInput):
		return "repository URL is required"
	case errors.Is(err, domain.ErrNotFound):
		return "deployment not found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "deployment already finished"
	case errors.Is(err, domain.ErrMissingCredential):
		return "a required credential is missing"
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "record not found"):
		return "deployment not found"
	case strings.Contains(errStr, "authentication required") || strings.Contains(errStr, "authentication failed"):
		return "git authentication failed - please check your token"
	case strings.Contains(errStr, "repository not found"):
		return "git repository not found - please check the URL and your access permissions"
	case strings.Contains(errStr, "permission denied"):
		return "permission denied"
	case strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "connection"):
		return "database connection failed"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "operation timed out"
	default:
		return "an unexpected error occurred"
	}
}
