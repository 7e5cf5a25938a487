package dbadapter

import (
	"context"
	"errors"
	"strings"
)

// classify maps a driver-level error into one of the package sentinels.
// Neither modernc.org/sqlite nor pgx exposes a uniform cross-driver error
// type here, so classification falls back to context cancellation checks
// plus conservative substring matching on the driver's message — good
// enough for HTTP status mapping in pkg/api, not for programmatic
// inspection of the original cause (Cause is preserved on OpError for that).
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrDBTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrDBTimeout
	case strings.Contains(msg, "syntax") || strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column") || strings.Contains(msg, "does not exist"):
		return ErrDBSyntax
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "read-only") || strings.Contains(msg, "readonly"):
		return ErrDBPermission
	case strings.Contains(msg, "connection") || strings.Contains(msg, "connect:"):
		return ErrDBConn
	default:
		return ErrDBConn
	}
}
