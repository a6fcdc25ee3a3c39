package connpager

import (
	"github.com/pkg/errors"
)

// PageDirection tells from which end of the ordered dataset the limit counts.
type PageDirection string

const (
	PageForward  PageDirection = "forward"
	PageBackward PageDirection = "backward"
)

func (d PageDirection) Valid() bool {
	return d == "" || d == PageForward || d == PageBackward
}

// Format selects the shape of the single row returned by a compiled query.
type Format string

const (
	// FormatColumns returns one named column per requested output.
	FormatColumns Format = "columns"
	// FormatObject returns a single JSON object column holding every output.
	FormatObject Format = "object"
)

func (f Format) Valid() bool {
	return f == "" || f == FormatColumns || f == FormatObject
}

// Output column names, identical for every dialect.
const (
	OutputData            = "data"
	OutputHasNextPage     = "hasNextPage"
	OutputHasPreviousPage = "hasPreviousPage"
	OutputTotalCount      = "totalCount"
	// OutputObject is the column name of FormatObject rows.
	OutputObject = "connection"
)

// PaginationRequest is the pagination intent of one request. It is applied on
// top of a Query by Compiler.Compile.
type PaginationRequest struct {
	// Direction backward turns Limit into "last N".
	Direction PageDirection
	// Limit replaces the limit of the query when set.
	Limit *int
	// Offset replaces the offset of the query when positive.
	Offset int
	// CursorPrefix identifies the partition every cursor of this shape belongs to.
	CursorPrefix []any
	After        Cursor
	Before       Cursor

	WantNextPage     bool
	WantPreviousPage bool
	WantTotalCount   bool

	Format Format
}

// Backward reports whether the limit of the request counts from the end.
func (r PaginationRequest) Backward() bool {
	return r.Direction == PageBackward
}

func (r PaginationRequest) validate() error {
	if !r.Direction.Valid() {
		return errors.Errorf("invalid page direction '%s'", r.Direction)
	}

	if !r.Format.Valid() {
		return errors.Errorf("invalid format '%s'", r.Format)
	}

	if r.Limit != nil && *r.Limit < 0 {
		return errors.Errorf("negative limit %d", *r.Limit)
	}

	if r.Offset < 0 {
		return errors.Errorf("negative offset %d", r.Offset)
	}

	return nil
}
