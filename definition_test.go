package connpager

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
)

const _usersCatalog = `
tables:
  users:
    columns: [id, name, created_at, bio]
    orderable: [id, name, created_at]
`

const _usersDefinition = `
table: users
alias: u
columns: [id, name, created_at]
where:
  - sql: "u.active = ?"
    args: [true]
orderBy: ["created_at desc", "id asc"]
cursorPrefix: ["users"]
arguments:
  first: 2
hasNextPage: true
totalCount: true
`

func Test_ParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(_usersCatalog))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "created_at", "bio"}, catalog.Tables["users"].Columns)

	_, err = ParseCatalog([]byte("tables: [1, 2]"))
	assert.Error(t, err)
}

func Test_ParseDefinition(t *testing.T) {
	d, err := ParseDefinition([]byte(_usersDefinition))
	require.NoError(t, err)
	assert.Equal(t, "users", d.Table)
	assert.Equal(t, "u", d.Alias)
	assert.Equal(t, []WhereFragment{{SQL: "u.active = ?", Args: []any{true}}}, d.Where)
	assert.Equal(t, 2, d.Arguments["first"])

	d, err = ParseDefinition([]byte("table: users"))
	require.NoError(t, err)
	assert.Equal(t, "users", d.Alias)

	_, err = ParseDefinition([]byte("table: users\nlimit: 3"))
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func Test_Definition_Validate(t *testing.T) {
	catalog, err := ParseCatalog([]byte(_usersCatalog))
	require.NoError(t, err)

	tests := []struct {
		name       string
		definition string
		errPart    string
	}{
		{name: "valid", definition: _usersDefinition},
		{name: "unknown table", definition: "table: user\ncolumns: [id]", errPart: "closest: 'users'"},
		{name: "unknown column", definition: "table: users\ncolumns: [nme]", errPart: "closest: 'name'"},
		{name: "not orderable", definition: "table: users\ncolumns: [id, bio]\norderBy: [bio asc]", errPart: "not orderable"},
		{name: "orderBy argument not orderable", definition: "table: users\ncolumns: [bio]\narguments:\n  orderBy: [{bio: asc}]", errPart: "not orderable"},
		{name: "invalid table", definition: "table: \"users;\"", errPart: "invalid table"},
		{name: "invalid column", definition: "table: users\ncolumns: [\"a b\"]", errPart: "invalid column"},
		{name: "invalid format", definition: "table: users\nformat: xml", errPart: "invalid format"},
		{name: "invalid arguments", definition: "table: users\narguments:\n  first: ten", errPart: "cannot parse 'first'"},
		{name: "invalid orderBy", definition: "table: users\ncolumns: [id]\norderBy: [id]", errPart: "invalid ordering string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDefinition([]byte(tt.definition))
			require.NoError(t, err)

			err = d.Validate(catalog)
			if tt.errPart == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}

	var nilDefinition *Definition
	assert.ErrorIs(t, nilDefinition.Validate(nil), ErrInvalidDefinition)
}

func Test_Definition_Build(t *testing.T) {
	d, err := ParseDefinition([]byte(_usersDefinition))
	require.NoError(t, err)

	q, req, err := d.Build()
	require.NoError(t, err)

	assert.Equal(t, "u", q.GetAlias())
	assert.Equal(t, Orderings{
		OrderByColumn("u", "created_at", DirectionDESC),
		OrderByColumn("u", "id", DirectionASC),
	}, q.GetSort())
	assert.Equal(t, PaginationRequest{
		Direction:      PageForward,
		Limit:          lo.ToPtr(2),
		CursorPrefix:   []any{"users"},
		WantNextPage:   true,
		WantTotalCount: true,
	}, req)

	c := newTestCompiler(t, postgres.New(postgres.Config{}))
	sql, vars, err := c.ToSQL(q, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `json_build_array('users', json_build_array("u"."created_at", "u"."id")) AS "__cursor"`)
	assert.Contains(t, sql, `WHERE (u.active = $1) ORDER BY "u"."created_at" DESC, "u"."id" ASC LIMIT 2)`)
	assert.Equal(t, []any{true, true, true}, vars)
}

func Test_Definition_Build_argumentsOverride(t *testing.T) {
	d, err := ParseDefinition([]byte(`
table: users
columns: [id, created_at]
orderBy: ["id asc"]
maxLimit: 5
format: object
arguments:
  last: 50
  orderBy: [{createdAt: desc}]
`))
	require.NoError(t, err)

	q, req, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, Orderings{OrderByColumn("users", "created_at", DirectionDESC)}, q.GetSort())
	assert.Equal(t, PageBackward, req.Direction)
	assert.Equal(t, lo.ToPtr(5), req.Limit)
	assert.Equal(t, FormatObject, req.Format)

	d.Where = []WhereFragment{{SQL: " "}}
	_, _, err = d.Build()
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func Test_DefinitionLoader_Load(t *testing.T) {
	catalog, err := ParseCatalog([]byte(_usersCatalog))
	require.NoError(t, err)

	loader, err := NewDefinitionLoader(DefaultCacheBudget)
	require.NoError(t, err)

	first, err := loader.Load(catalog, _usersDefinition)
	require.NoError(t, err)
	second, err := loader.Load(catalog, _usersDefinition)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = loader.Load(catalog, "table: nope")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	_, err = loader.Load(catalog, "table: nope")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Equal(t, 2, loader.Cached())

	updated, err := ParseCatalog([]byte(_usersCatalog + "  nope:\n    columns: [id]\n"))
	require.NoError(t, err)

	_, err = loader.Load(updated, "table: nope")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.Cached())

	third, err := loader.Load(updated, _usersDefinition)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}
