package main

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/Alp4ka/connpager"
)

var fetchFile string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Runs a connection definition and prints the page",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, req, err := loadDefinition(fetchFile)
		if err != nil {
			return err
		}

		if cfg.DSN == "" {
			return errors.New("dsn is required")
		}

		d, err := dialector(cfg)
		if err != nil {
			return err
		}

		compiler, err := connpager.NewCompiler(d)
		if err != nil {
			return err
		}
		compiler = compiler.WithLogger(logger)

		conn, err := fetch(cmd.Context(), compiler, d, query, req)
		if err != nil {
			return err
		}

		return printConnection(conn)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchFile, "file", "f", "", "connection definition file")
	fetchCmd.Flags().String("executor", "gorm", "query executor: gorm, sqlx or pgx")
	_ = fetchCmd.MarkFlagRequired("file")

	if err := v.BindPFlag("executor", fetchCmd.Flags().Lookup("executor")); err != nil {
		panic(err)
	}
}

func fetch(ctx context.Context, compiler *connpager.Compiler, d gorm.Dialector, query *connpager.Query, req connpager.PaginationRequest) (*connpager.Connection, error) {
	log := logger.WithFields(logrus.Fields{"dialect": cfg.Dialect, "executor": cfg.Executor})

	switch cfg.Executor {
	case "gorm":
		db, err := gorm.Open(d, &gorm.Config{Logger: gormlogger.Discard})
		if err != nil {
			return nil, errors.Wrap(err, "cannot open database")
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		log.Debug("fetching connection")

		return compiler.Fetch(ctx, db, query, req)
	case "sqlx":
		db, err := sqlx.ConnectContext(ctx, sqlDriverName(cfg.Dialect), cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "cannot open database")
		}
		defer db.Close()
		log.Debug("fetching connection")

		return compiler.FetchWith(ctx, connpager.SQLXQuerier{DB: db}, query, req)
	case "pgx":
		if cfg.Dialect != "postgres" {
			return nil, errors.Errorf("pgx executor requires the postgres dialect, got '%s'", cfg.Dialect)
		}

		conn, err := pgx.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "cannot connect to database")
		}
		defer conn.Close(ctx)
		log.Debug("fetching connection")

		return compiler.FetchWith(ctx, connpager.PgxQuerier{Conn: conn}, query, req)
	default:
		return nil, errors.Errorf("unknown executor '%s'", cfg.Executor)
	}
}

type edgeOutput struct {
	Cursor string         `json:"cursor"`
	Node   map[string]any `json:"node"`
}

func printConnection(conn *connpager.Connection) error {
	edges, err := conn.Edges()
	if err != nil {
		return err
	}

	pageInfo, err := conn.PageInfo()
	if err != nil {
		return err
	}

	out := map[string]any{
		"edges": lo.Map(edges, func(edge connpager.Edge, _ int) edgeOutput {
			return edgeOutput{Cursor: edge.Cursor.String(), Node: edge.Node}
		}),
		"pageInfo": pageInfo,
	}
	if conn.TotalCount != nil {
		out["totalCount"] = *conn.TotalCount
	}

	return printJSON(out)
}
