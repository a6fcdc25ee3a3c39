package connpager

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pageTable = "__page"

// ErrInvalidQuery is returned when a Query or PaginationRequest cannot be
// compiled into valid SQL.
var ErrInvalidQuery = errors.New("invalid connection query")

var _reservedAliases = []string{cursorColumn, positionColumn, rowNumberColumn, pageTable}

// Compiler turns a Query and a PaginationRequest into a single SQL statement
// returning the page rows together with the requested page info.
//
// Compiler holds no per-request state and is safe for concurrent use.
type Compiler struct {
	dialect Dialect
	db      *gorm.DB
	logger  logrus.FieldLogger
}

// NewCompiler creates a Compiler rendering for the given gorm dialector. The
// dialector is used for identifier quoting and placeholders only, it does not
// need a connection.
func NewCompiler(dialector gorm.Dialector) (*Compiler, error) {
	if dialector == nil {
		return nil, errors.Wrap(ErrUnsupportedDialect, "nil dialector")
	}

	dialect, err := DialectFor(dialector.Name())
	if err != nil {
		return nil, err
	}

	return &Compiler{
		dialect: dialect,
		db:      &gorm.DB{Config: &gorm.Config{Dialector: dialector}},
		logger:  logrus.StandardLogger(),
	}, nil
}

// NewCompilerFromDB creates a Compiler for the dialector of an open gorm.DB.
func NewCompilerFromDB(db *gorm.DB) (*Compiler, error) {
	if db == nil {
		return nil, errors.Wrap(ErrUnsupportedDialect, "nil database")
	}

	return NewCompiler(db.Dialector)
}

// WithLogger returns a copy of the compiler using logger. A nil logger
// means logrus.StandardLogger(), the default.
func (c *Compiler) WithLogger(logger logrus.FieldLogger) *Compiler {
	ret := *c
	ret.logger = logger
	if logger == nil {
		ret.logger = logrus.StandardLogger()
	}

	return &ret
}

func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile builds the connection query:
//
//	WITH __page AS (<page rows with __cursor and __position>)
//	SELECT <data> AS data, <hasNextPage> AS hasNextPage, ...
//
// Only the outputs requested by req are selected, data is always present. q
// is not modified.
func (c *Compiler) Compile(q *Query, req PaginationRequest) (clause.Expression, error) {
	b, err := c.newConnectionBuilder(q, req)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compile connection query")
	}

	return b.build(), nil
}

// ToSQL compiles and renders the query into SQL text with dialect
// placeholders and its bound values.
func (c *Compiler) ToSQL(q *Query, req PaginationRequest) (string, []any, error) {
	expr, err := c.Compile(q, req)
	if err != nil {
		return "", nil, err
	}

	sql, vars := Render(c.db, expr)

	return sql, vars, nil
}

// connectionBuilder holds the validated state of a single compilation.
type connectionBuilder struct {
	dialect Dialect
	logger  logrus.FieldLogger
	query   *Query
	request PaginationRequest

	// from is the relation used by every subquery, the query relation wrapped
	// with a row number column when there is no ordering.
	from            clause.Expression
	order           Orderings
	comparator      cursorComparator
	cursorSelection clause.Expression
}

func (c *Compiler) newConnectionBuilder(q *Query, req PaginationRequest) (*connectionBuilder, error) {
	if q == nil {
		return nil, errors.Wrap(ErrInvalidQuery, "query is nil")
	}

	if err := req.validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidQuery, err.Error())
	}

	q = q.clone()
	if req.Limit != nil {
		q.limit = lo.ToPtr(*req.Limit)
		q.flip = req.Backward()
	}
	if req.Offset > 0 {
		q.offset = req.Offset
	}

	if err := validateQuery(q); err != nil {
		return nil, errors.Wrap(ErrInvalidQuery, err.Error())
	}

	b := &connectionBuilder{
		dialect:    c.dialect,
		logger:     c.logger,
		query:      q,
		request:    req,
		from:       q.from,
		order:      q.sort,
		comparator: newCursorComparator(q.sort, q.alias, req.CursorPrefix),
	}

	var err error
	if b.cursorSelection, err = b.comparator.selection(c.dialect); err != nil {
		return nil, errors.Wrap(ErrInvalidQuery, err.Error())
	}

	if len(q.sort) == 0 {
		b.from = clause.Expr{
			SQL: "(SELECT ?.*, row_number() OVER (PARTITION BY 1) AS ? FROM ? AS ?)",
			Vars: []any{
				clause.Table{Name: q.alias},
				clause.Column{Name: rowNumberColumn},
				q.from,
				clause.Table{Name: q.alias},
			},
		}
		b.order = Orderings{{Expression: b.comparator.rowNumber, Direction: DirectionASC}}
	}

	if !req.After.IsEmpty() {
		q.lowerBound = append(q.lowerBound, b.comparator.compare(req.After, true))
	}
	if !req.Before.IsEmpty() {
		q.upperBound = append(q.upperBound, b.comparator.compare(req.Before, false))
	}

	return b, nil
}

func validateQuery(q *Query) error {
	if q.from == nil {
		return errors.New("query has no relation")
	}

	if !validIdentifier(q.alias) || lo.Contains(_reservedAliases, q.alias) {
		return errors.Errorf("invalid relation alias '%s'", q.alias)
	}

	seen := make(map[string]struct{}, len(q.fields))
	for i, field := range q.fields {
		if field.Expression == nil {
			return errors.Errorf("field %d has no expression", i)
		}

		if !validIdentifier(field.Alias) || lo.Contains(_reservedAliases, field.Alias) {
			return errors.Errorf("invalid field alias '%s'", field.Alias)
		}

		if _, ok := seen[field.Alias]; ok {
			return errors.Errorf("duplicate field alias '%s'", field.Alias)
		}
		seen[field.Alias] = struct{}{}
	}

	if err := q.sort.validate(); err != nil {
		return err
	}

	if q.limit != nil && *q.limit < 0 {
		return errors.Errorf("negative limit %d", *q.limit)
	}

	if q.offset < 0 {
		return errors.Errorf("negative offset %d", q.offset)
	}

	return nil
}

func (b *connectionBuilder) build() clause.Expression {
	outputs := []JSONField{{Key: OutputData, Value: b.data()}}

	if b.request.WantNextPage || b.request.WantPreviousPage {
		next, prev := b.pageChecks()
		if b.request.WantNextPage {
			outputs = append(outputs, JSONField{Key: OutputHasNextPage, Value: b.pageCheckSQL(next, false)})
		}
		if b.request.WantPreviousPage {
			outputs = append(outputs, JSONField{Key: OutputHasPreviousPage, Value: b.pageCheckSQL(prev, true)})
		}
	}

	if b.request.WantTotalCount {
		outputs = append(outputs, JSONField{Key: OutputTotalCount, Value: b.totalCount()})
	}

	var selection clause.Expression
	if b.request.Format == FormatObject {
		selection = b.object(outputs)
	} else {
		selection = join(", ", lo.Map(outputs, func(output JSONField, _ int) clause.Expression {
			return aliased(output.Value, output.Key)
		}))
	}

	return clause.Expr{
		SQL:  "WITH ? AS (?) SELECT ?",
		Vars: []any{TableExpr(pageTable), b.page(), selection},
	}
}

// pageChecks chooses the checks of both sides. A zero limit means nothing
// was requested, so there is no page on either side.
func (b *connectionBuilder) pageChecks() (pageCheck, pageCheck) {
	q := b.query
	if q.limit != nil && *q.limit == 0 {
		return pageCheckNone, pageCheckNone
	}

	hasLimit := q.limit != nil
	canTieBreak := len(q.sort) > 0

	next := choosePageCheck(len(q.upperBound) > 0, hasLimit && !q.flip, canTieBreak, q.offset, false)
	prev := choosePageCheck(len(q.lowerBound) > 0, hasLimit && q.flip, canTieBreak, q.offset, true)

	b.logger.WithFields(logrus.Fields{
		"dialect":         b.dialect.Name(),
		"hasNextPage":     next.String(),
		"hasPreviousPage": prev.String(),
	}).Debug("page checks chosen")

	return next, prev
}

// page renders the body of the page CTE. Rows are numbered in the natural
// order and limited in the flipped one, so "last N" pages keep their order.
func (b *connectionBuilder) page() clause.Expression {
	q := b.query

	selection := lo.Map(q.fields, func(field Field, _ int) clause.Expression {
		return aliased(field.Expression, field.Alias)
	})
	selection = append(selection,
		aliased(b.cursorSelection, cursorColumn),
		aliased(clause.Expr{SQL: "row_number() OVER (ORDER BY ?)", Vars: []any{b.order.ToExpression()}}, positionColumn),
	)

	conditions := append(append(append([]clause.Expression{}, q.where...), q.lowerBound...), q.upperBound...)
	order := lo.Ternary(q.flip, b.order.Reverse(), b.order)

	body := clause.Expr{
		SQL: "SELECT ? FROM ? AS ? WHERE ? ORDER BY ?",
		Vars: []any{
			join(", ", selection),
			b.from,
			clause.Table{Name: q.alias},
			and(conditions...),
			order.ToExpression(),
		},
	}

	return withSuffix(body, b.dialect.LimitOffset(q.limit, q.offset))
}

// data aggregates the page rows into a JSON array of node objects, each
// carrying its "__cursor".
func (b *connectionBuilder) data() clause.Expression {
	fields := lo.Map(b.query.fields, func(field Field, _ int) JSONField {
		return JSONField{Key: field.Alias, Value: ColumnExpr(pageTable, field.Alias)}
	})
	fields = append(fields, JSONField{Key: cursorColumn, Value: b.dialect.JSONValue(ColumnExpr(pageTable, cursorColumn))})

	return b.dialect.AggregateRows(
		b.dialect.JSONObject(fields...),
		ColumnExpr(pageTable, positionColumn),
		TableExpr(pageTable),
	)
}

// totalCount counts every row matching the filters, ignoring cursors,
// limit and offset.
func (b *connectionBuilder) totalCount() clause.Expression {
	return clause.Expr{
		SQL:  "(SELECT COUNT(*) FROM ? AS ? WHERE ?)",
		Vars: []any{b.query.from, clause.Table{Name: b.query.alias}, and(b.query.where...)},
	}
}

func (b *connectionBuilder) object(outputs []JSONField) clause.Expression {
	fields := lo.Map(outputs, func(output JSONField, _ int) JSONField {
		switch output.Key {
		case OutputData:
			return JSONField{Key: output.Key, Value: b.dialect.JSONValue(output.Value)}
		case OutputHasNextPage, OutputHasPreviousPage:
			return JSONField{Key: output.Key, Value: b.dialect.JSONBool(output.Value)}
		default:
			return output
		}
	})

	return aliased(b.dialect.JSONObject(fields...), OutputObject)
}

func aliased(expr clause.Expression, alias string) clause.Expression {
	return clause.Expr{SQL: "? AS ?", Vars: []any{expr, clause.Column{Name: alias}}}
}
