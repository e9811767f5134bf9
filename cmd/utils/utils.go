// Package utils provides utility functions for CLI commands in Launchpad.
package utils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/deploy"
)

// CommandError logs a failed command and returns a user-facing error
func CommandError(operation string, err error, context ...any) error {
	slog.Error("Command failed", append([]any{"operation", operation, "error", err}, context...)...)
	return fmt.Errorf("%s failed: %s", operation, deploy.FormatErrorForUser(err))
}

// ParseDeploymentID parses a deployment ID argument
func ParseDeploymentID(operation, input string) (uuid.UUID, error) {
	id, err := uuid.Parse(input)
	if err != nil {
		slog.Warn("Invalid UUID provided", "operation", operation, "input", input)
		return uuid.Nil, fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", input)
	}
	return id, nil
}

// ParseCredentials turns repeated key=value flags into a credentials map.
// Keys may contain spaces, e.g. "Vercel Token=abc".
func ParseCredentials(pairs []string) (map[string]string, error) {
	credentials := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid credential %q: expected key=value", pair)
		}
		credentials[key] = value
	}
	return credentials, nil
}
