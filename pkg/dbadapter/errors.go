package dbadapter

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Adapter methods, following the teacher's
// pkg/config/errors.go sentinel+wrapper pattern.
var (
	ErrDBTimeout    = errors.New("database operation timed out")
	ErrDBSyntax     = errors.New("database rejected query syntax")
	ErrDBPermission = errors.New("database denied permission")
	ErrDBConn       = errors.New("database connection failed")
)

// OpError wraps one of the sentinels above with the failing SQL and the
// driver's underlying error for logging.
type OpError struct {
	Sentinel error
	SQL      string
	Cause    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Sentinel, e.Cause)
}

func (e *OpError) Unwrap() error {
	return e.Sentinel
}

func newOpError(sentinel error, sql string, cause error) *OpError {
	return &OpError{Sentinel: sentinel, SQL: sql, Cause: cause}
}
