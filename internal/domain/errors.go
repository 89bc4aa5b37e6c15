package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by single-entity lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ValidationError reports a raw record that failed required-field or type checks.
type ValidationError struct {
	Line     int // 1-based source line, 0 when unknown
	RecordID string
	Field    string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation")
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.RecordID != "" {
		fmt.Fprintf(&b, " record %s", e.RecordID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError rejects invalid settings or request parameters before any I/O.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// TransactionError is a failed batch. The batch was rolled back as a whole.
type TransactionError struct {
	BatchSeq  int
	MinID     int64
	MaxID     int64
	Retryable bool
	Err       error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("batch %d [ids %d..%d]: %v", e.BatchSeq, e.MinID, e.MaxID, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// QueryError is a failed read. Callers may retry; it never means "no match".
type QueryError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *QueryError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("query %s: timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}
