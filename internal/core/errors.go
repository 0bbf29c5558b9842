package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Statement and connection failures are reported through
// *StatementError and *ConnectionError, which match ErrStatement and
// ErrConnection with errors.Is.
var (
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("unable to connect to database")
	// ErrStatement matches every *StatementError.
	ErrStatement = errors.New("statement failed")

	ErrMissingFrom         = errors.New("query has no FROM table")
	ErrNoAssignments       = errors.New("update has no assignments")
	ErrEmptyInsert         = errors.New("insert has no values")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrUnknownDialect      = errors.New("unknown dialect")
	ErrNoDefaultConnection = errors.New("no default connection registered")
	// ErrUnconditionalWrite is returned by Model writes without a condition.
	// Pass AllRows to touch every row on purpose.
	ErrUnconditionalWrite = errors.New("write without condition; use AllRows to update or delete every row")

	ErrFieldNotFound   = errors.New("field not found")
	ErrMissingKey      = errors.New("record has no primary key value")
	ErrDetachedRecord  = errors.New("record is not bound to a model")
	ErrNoTransaction   = errors.New("no transaction in progress")
	ErrTransactionOpen = errors.New("transaction already in progress")
)

// ConnectAttempt is one failed attempt to open a connection.
type ConnectAttempt struct {
	// Backup is 0 for the primary and the 1-based backup index otherwise.
	Backup int
	Host   string
	Err    error
}

// ConnectionError is returned when the primary and every backup failed.
// No handle is kept open after it is returned.
type ConnectionError struct {
	Name     string
	Attempts []ConnectAttempt
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "connection %q: %s after %d attempt(s)", e.Name, ErrConnection, len(e.Attempts))
	if n := len(e.Attempts); n > 0 {
		fmt.Fprintf(&b, ": %v", e.Attempts[n-1].Err)
	}
	return b.String()
}

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// Unwrap returns the error of every attempt.
func (e *ConnectionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Statement phases.
const (
	PhasePrepare = "prepare"
	PhaseExecute = "execute"
	PhaseScan    = "scan"
)

// StatementError describes a failed statement. The connection stays usable.
type StatementError struct {
	Phase string
	// SQL is the statement as sent to the driver.
	SQL    string
	Params Params
	// Code is the native driver error code, if the driver reported one.
	Code string
	Err  error
}

func (e *StatementError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Phase, ErrStatement, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, ErrStatement, e.Err)
}

// Is reports whether target is ErrStatement.
func (e *StatementError) Is(target error) bool {
	return target == ErrStatement
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
