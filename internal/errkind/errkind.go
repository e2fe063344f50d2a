// Package errkind classifies reconciler errors the way spec.md §7 requires:
// every error surfaced across package boundaries carries one of a small set
// of kinds so callers (CLI, MCP server, dashboard) can render or react to it
// without string-matching.
package errkind

import "fmt"

// Kind is one of the error categories from spec.md §7.
type Kind string

const (
	Validation  Kind = "validation"
	Policy      Kind = "policy"
	NotFound    Kind = "not_found"
	Conflict    Kind = "conflict"
	Apply       Kind = "apply"
	StateUpdate Kind = "state_update"
)

// Error wraps an underlying error with a Kind, an optional field path
// (for Validation errors) and an optional suggestion.
type Error struct {
	Kind       Kind
	Field      string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind without losing it (errors.Is/As
// still work through Unwrap).
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// WithField attaches a field path, used for Validation errors that need to
// point at the offending manifest entity or identifier key.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSuggestion attaches a user-actionable hint, e.g. "pass --force".
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
