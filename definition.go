package connpager

import (
	"bytes"
	"io"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for definitions that cannot be parsed or
// do not match the catalog.
var ErrInvalidDefinition = errors.New("invalid connection definition")

// Catalog describes the relations a Definition may reference.
type Catalog struct {
	Tables map[string]CatalogTable `yaml:"tables"`
}

// CatalogTable lists the columns of a table. Orderable restricts the columns
// usable in orderBy, every column is orderable when it is empty.
type CatalogTable struct {
	Columns   []string `yaml:"columns"`
	Orderable []string `yaml:"orderable"`
}

func (t CatalogTable) orderable(column string) bool {
	if len(t.Orderable) == 0 {
		return slices.Contains(t.Columns, column)
	}

	return slices.Contains(t.Orderable, column)
}

// ParseCatalog parses a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	ret := new(Catalog)
	if err := decodeYAML(data, ret); err != nil {
		return nil, errors.Wrap(err, "cannot parse catalog")
	}

	return ret, nil
}

// WhereFragment is a trusted SQL condition with "?" placeholders.
type WhereFragment struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args"`
}

// Definition is a declarative connection: the relation, its selected
// columns, default ordering and the connection arguments of one request.
type Definition struct {
	Table   string          `yaml:"table"`
	Alias   string          `yaml:"alias"`
	Columns []string        `yaml:"columns"`
	Where   []WhereFragment `yaml:"where"`
	// OrderBy is the default ordering in "column asc|desc" form, used when the
	// arguments have no orderBy.
	OrderBy      []string       `yaml:"orderBy"`
	CursorPrefix []any          `yaml:"cursorPrefix"`
	Arguments    map[string]any `yaml:"arguments"`

	HasNextPage     bool   `yaml:"hasNextPage"`
	HasPreviousPage bool   `yaml:"hasPreviousPage"`
	TotalCount      bool   `yaml:"totalCount"`
	Format          Format `yaml:"format"`
	// MaxLimit overrides MaxLimit, negative disables clamping.
	MaxLimit int `yaml:"maxLimit"`
}

// ParseDefinition parses a YAML definition. Unknown keys are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	ret := new(Definition)
	if err := decodeYAML(data, ret); err != nil {
		return nil, errors.Wrap(ErrInvalidDefinition, err.Error())
	}

	if ret.Alias == "" {
		ret.Alias = ret.Table
	}

	return ret, nil
}

func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// columnMapping maps both the column names and their lowerCamel forms to the
// columns, so orderBy arguments may use either.
func (d *Definition) columnMapping() ColumnMapping {
	ret := make(ColumnMapping, 2*len(d.Columns))
	for _, column := range d.Columns {
		ret[column] = column
		ret[strcase.ToLowerCamel(column)] = column
	}

	return ret
}

// Validate checks the definition against the catalog. A nil catalog skips
// the catalog checks.
func (d *Definition) Validate(catalog *Catalog) error {
	if d == nil {
		return errors.Wrap(ErrInvalidDefinition, "definition is nil")
	}

	if !validIdentifier(d.Table) {
		return errors.Wrapf(ErrInvalidDefinition, "invalid table '%s'", d.Table)
	}

	for _, column := range d.Columns {
		if !validIdentifier(column) {
			return errors.Wrapf(ErrInvalidDefinition, "invalid column '%s'", column)
		}
	}

	if !d.Format.Valid() {
		return errors.Wrapf(ErrInvalidDefinition, "invalid format '%s'", d.Format)
	}

	args, err := ParseConnectionArgs(d.Arguments)
	if err != nil {
		return errors.Wrap(ErrInvalidDefinition, err.Error())
	}

	sort, err := d.sort(args)
	if err != nil {
		return errors.Wrap(ErrInvalidDefinition, err.Error())
	}

	if catalog == nil {
		return nil
	}

	table, ok := catalog.Tables[d.Table]
	if !ok {
		return errors.Wrapf(ErrInvalidDefinition, "unknown table '%s'. closest: '%s'", d.Table, closestAlias(d.Table, lo.Keys(catalog.Tables)))
	}

	for _, column := range d.Columns {
		if !slices.Contains(table.Columns, column) {
			return errors.Wrapf(ErrInvalidDefinition, "unknown column '%s.%s'. closest: '%s'", d.Table, column, closestAlias(column, table.Columns))
		}
	}

	for _, column := range sortColumns(sort) {
		if !table.orderable(column) {
			return errors.Wrapf(ErrInvalidDefinition, "column '%s.%s' is not orderable", d.Table, column)
		}
	}

	return nil
}

func (d *Definition) sort(args ConnectionArgs) (Orderings, error) {
	if len(args.OrderBy) > 0 {
		return args.Sort(d.Alias, d.columnMapping())
	}

	return ParseSort(d.OrderBy, d.Alias, d.columnMapping())
}

// sortColumns extracts the column names of orderings built by OrderByColumn.
func sortColumns(sort Orderings) []string {
	return lo.FilterMap(sort, func(ordering OrderBy, _ int) (string, bool) {
		column, ok := columnOf(ordering.Expression)
		if !ok {
			return "", false
		}

		return column, true
	})
}

// Build turns the definition into a Query and the PaginationRequest of its
// arguments.
func (d *Definition) Build() (*Query, PaginationRequest, error) {
	if err := d.Validate(nil); err != nil {
		return nil, PaginationRequest{}, err
	}

	args, err := ParseConnectionArgs(d.Arguments)
	if err != nil {
		return nil, PaginationRequest{}, errors.Wrap(ErrInvalidDefinition, err.Error())
	}

	sort, err := d.sort(args)
	if err != nil {
		return nil, PaginationRequest{}, errors.Wrap(ErrInvalidDefinition, err.Error())
	}

	query := NewTableQuery(d.Table, d.Alias).
		WithColumns(d.Columns...).
		WithSubstitutedSort(sort...)

	for _, where := range d.Where {
		if strings.TrimSpace(where.SQL) == "" {
			return nil, PaginationRequest{}, errors.Wrap(ErrInvalidDefinition, "empty where fragment")
		}
		query = query.WithWhere(Raw(where.SQL, where.Args...))
	}

	opts := []RequestOption{WithFormat(d.Format)}
	if d.MaxLimit != 0 {
		opts = append(opts, WithMaxLimit(d.MaxLimit))
	}

	req, err := args.Request(d.CursorPrefix, opts...)
	if err != nil {
		return nil, PaginationRequest{}, errors.Wrap(ErrInvalidDefinition, err.Error())
	}
	req.WantNextPage = d.HasNextPage
	req.WantPreviousPage = d.HasPreviousPage
	req.WantTotalCount = d.TotalCount

	return query, req, nil
}

type loadedDefinition struct {
	definition *Definition
	err        error
}

// DefinitionLoader parses and validates definitions, caching the outcome per
// document. Validation errors are cached as well and reset together with the
// cache when the catalog changes.
type DefinitionLoader struct {
	cache *DocumentCache[loadedDefinition]
}

// NewDefinitionLoader creates a loader with a cache of budgetBytes.
func NewDefinitionLoader(budgetBytes int) (*DefinitionLoader, error) {
	cache, err := NewDocumentCache[loadedDefinition](budgetBytes)
	if err != nil {
		return nil, err
	}

	return &DefinitionLoader{cache: cache}, nil
}

// Load returns the validated definition of document.
func (l *DefinitionLoader) Load(catalog *Catalog, document string) (*Definition, error) {
	loaded, _ := l.cache.GetOrCompute(catalog, document, func(document string) (loadedDefinition, error) {
		definition, err := ParseDefinition([]byte(document))
		if err == nil {
			err = definition.Validate(catalog)
		}

		return loadedDefinition{definition: definition, err: err}, nil
	})
	if loaded.err != nil {
		return nil, loaded.err
	}

	return loaded.definition, nil
}

// Cached returns the number of cached documents.
func (l *DefinitionLoader) Cached() int {
	return l.cache.Len()
}
