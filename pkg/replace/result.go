package replace

import (
	"github.com/apache/arrow/go/v17/arrow"

	"github.com/ajitpratap0/colreplace/pkg/i18n"
	"github.com/ajitpratap0/colreplace/pkg/rewrite"
)

// RenderError is a user-facing render failure.
type RenderError struct {
	Message i18n.Message `json:"message"`
	// Err is the underlying structured error, if any.
	Err error `json:"-"`
}

// Error renders the message in the default locale.
func (e RenderError) Error() string {
	return e.Message.String()
}

// Unwrap returns the underlying error.
func (e RenderError) Unwrap() error {
	return e.Err
}

// ColumnReport describes what happened to one rewritten column.
type ColumnReport struct {
	Name  string
	Type  arrow.DataType
	Stats rewrite.Stats
}

// Result is the outcome of a render. Exactly one of Table and Errors is
// meaningful: when Errors is non-empty, Table is an empty table.
type Result struct {
	Table   arrow.Table
	Errors  []RenderError
	Columns []ColumnReport
}

// Err returns the first render error, or nil.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Release releases the result table.
func (r Result) Release() {
	if r.Table != nil {
		r.Table.Release()
	}
}
