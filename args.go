package connpager

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrInvalidArguments is returned for connection arguments that cannot be
// turned into a PaginationRequest.
var ErrInvalidArguments = errors.New("invalid connection arguments")

// OrderField is a single entry of the "orderBy" connection argument.
type OrderField struct {
	Field     string
	Direction Direction
}

// ConnectionArgs are the raw Relay connection arguments of a field:
// first, last, offset, after, before and orderBy.
type ConnectionArgs struct {
	First   *int
	Last    *int
	Offset  int
	After   string
	Before  string
	OrderBy []OrderField
}

// ParseConnectionArgs extracts connection arguments from the given map.
// Numbers may be given as int, int64, float64 or numeric strings, as they
// arrive from JSON or GraphQL variables.
func ParseConnectionArgs(args map[string]any) (ConnectionArgs, error) {
	ret := ConnectionArgs{}

	var err error
	if ret.First, err = parseIntArg(args, "first"); err != nil {
		return ret, err
	}

	if ret.Last, err = parseIntArg(args, "last"); err != nil {
		return ret, err
	}

	offset, err := parseIntArg(args, "offset")
	if err != nil {
		return ret, err
	}
	ret.Offset = lo.FromPtr(offset)

	if ret.After, err = parseStringArg(args, "after"); err != nil {
		return ret, err
	}

	if ret.Before, err = parseStringArg(args, "before"); err != nil {
		return ret, err
	}

	if ret.OrderBy, err = parseOrderByArg(args["orderBy"]); err != nil {
		return ret, err
	}

	return ret, nil
}

func parseIntArg(args map[string]any, name string) (*int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case int:
		return lo.ToPtr(v), nil
	case int32:
		return lo.ToPtr(int(v)), nil
	case int64:
		return lo.ToPtr(int(v)), nil
	case float64:
		if v != float64(int(v)) {
			return nil, errors.Wrapf(ErrInvalidArguments, "'%s' is not an integer: %v", name, v)
		}

		return lo.ToPtr(int(v)), nil
	case string:
		num, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArguments, "cannot parse '%s': %v", name, err)
		}

		return lo.ToPtr(num), nil
	default:
		return nil, errors.Wrapf(ErrInvalidArguments, "cannot cast '%s' value %v to an integer", name, raw)
	}
}

func parseStringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", nil
	}

	asString, ok := raw.(string)
	if !ok {
		return "", errors.Wrapf(ErrInvalidArguments, "cannot cast '%s' value %v to a string", name, raw)
	}

	return asString, nil
}

// parseOrderByArg accepts a list of single-key maps, {"createdAt": "desc"}.
func parseOrderByArg(raw any) ([]OrderField, error) {
	if raw == nil {
		return nil, nil
	}

	var entries []map[string]any
	switch v := raw.(type) {
	case []map[string]any:
		entries = v
	case []any:
		for _, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidArguments, "cannot cast orderBy entry %v to an object", entry)
			}
			entries = append(entries, m)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidArguments, "cannot cast orderBy value %v to a list", raw)
	}

	ret := make([]OrderField, 0, len(entries))
	for _, entry := range entries {
		if len(entry) != 1 {
			return nil, errors.Wrapf(ErrInvalidArguments, "orderBy entry must have exactly one field, got %d", len(entry))
		}

		for field, rawDirection := range entry {
			direction, ok := rawDirection.(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidArguments, "cannot cast direction of '%s' to a string", field)
			}

			d := Direction(strings.ToUpper(direction))
			if !d.Valid() {
				return nil, errors.Wrapf(ErrInvalidArguments, "invalid ordering direction '%s' of '%s'", direction, field)
			}

			ret = append(ret, OrderField{Field: field, Direction: d})
		}
	}

	return ret, nil
}

type requestOptions struct {
	maxLimit int
	request  *PaginationRequest
}

// RequestOption adjusts the PaginationRequest built by ConnectionArgs.Request.
type RequestOption func(*requestOptions)

// WithPageInfo requests hasNextPage and hasPreviousPage.
func WithPageInfo() RequestOption {
	return func(o *requestOptions) {
		o.request.WantNextPage = true
		o.request.WantPreviousPage = true
	}
}

// WithTotalCount requests totalCount.
func WithTotalCount() RequestOption {
	return func(o *requestOptions) {
		o.request.WantTotalCount = true
	}
}

// WithFormat selects the output format.
func WithFormat(format Format) RequestOption {
	return func(o *requestOptions) {
		o.request.Format = format
	}
}

// WithMaxLimit clamps first/last to maxLimit instead of MaxLimit. A
// non-positive maxLimit disables clamping.
func WithMaxLimit(maxLimit int) RequestOption {
	return func(o *requestOptions) {
		o.maxLimit = maxLimit
	}
}

// Request decodes the cursor tokens and builds a PaginationRequest. first and
// last cannot be combined, limits are clamped to MaxLimit.
func (a ConnectionArgs) Request(prefix []any, opts ...RequestOption) (PaginationRequest, error) {
	ret := PaginationRequest{
		Direction:    PageForward,
		CursorPrefix: prefix,
		Offset:       a.Offset,
	}

	if a.First != nil && a.Last != nil {
		return ret, errors.Wrap(ErrInvalidArguments, "cannot combine 'first' and 'last'")
	}

	switch {
	case a.First != nil:
		ret.Limit = lo.ToPtr(*a.First)
	case a.Last != nil:
		ret.Limit = lo.ToPtr(*a.Last)
		ret.Direction = PageBackward
	}

	if ret.Limit != nil && *ret.Limit < 0 {
		return ret, errors.Wrapf(ErrInvalidArguments, "negative limit %d", *ret.Limit)
	}

	if a.Offset < 0 {
		return ret, errors.Wrapf(ErrInvalidArguments, "negative offset %d", a.Offset)
	}

	var err error
	if ret.After, err = DecodeCursor(a.After); err != nil {
		return ret, errors.Wrapf(ErrInvalidArguments, "after: %v", err)
	}

	if ret.Before, err = DecodeCursor(a.Before); err != nil {
		return ret, errors.Wrapf(ErrInvalidArguments, "before: %v", err)
	}

	o := &requestOptions{maxLimit: MaxLimit, request: &ret}
	for _, opt := range opts {
		opt(o)
	}
	ret.Limit = NormalizeLimitMax(ret.Limit, o.maxLimit)

	return ret, nil
}

// Sort resolves the orderBy argument into Orderings over the relation alias.
// Fields are looked up in mapping first and fall back to their snake_case
// form when mapping is nil.
func (a ConnectionArgs) Sort(alias string, mapping ColumnMapping) (Orderings, error) {
	ret := make(Orderings, 0, len(a.OrderBy))
	aliases := lo.Keys(mapping)

	for _, field := range a.OrderBy {
		column := strcase.ToSnake(field.Field)
		if mapping != nil {
			column = mapping[field.Field]
			if column == "" {
				return nil, errors.Wrapf(ErrInvalidArguments, "invalid orderBy field '%s'. closest: '%s'", field.Field, closestAlias(field.Field, aliases))
			}
		}

		if !validIdentifier(column) {
			return nil, errors.Wrapf(ErrInvalidArguments, "invalid orderBy field '%s'", field.Field)
		}

		ret = append(ret, OrderByColumn(alias, column, field.Direction))
	}

	return ret, nil
}
