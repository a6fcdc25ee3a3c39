package connpager

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

// newGORMSQLite opens an in-memory SQLite database. A single connection is
// kept open, every connection of ":memory:" is a separate database.
func newGORMSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: ":memory:"}, &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// renderDB returns a connection-less gorm.DB good for Render only.
func renderDB(dialector gorm.Dialector) *gorm.DB {
	return &gorm.DB{Config: &gorm.Config{Dialector: dialector}}
}

func newTestCompiler(t *testing.T, dialector gorm.Dialector) *Compiler {
	t.Helper()

	c, err := NewCompiler(dialector)
	require.NoError(t, err)

	return c
}
