package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Alp4ka/connpager"
)

var compileFile string

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Prints the SQL of a connection definition without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, req, err := loadDefinition(compileFile)
		if err != nil {
			return err
		}

		d, err := dialector(Config{Dialect: cfg.Dialect})
		if err != nil {
			return err
		}

		compiler, err := connpager.NewCompiler(d)
		if err != nil {
			return err
		}

		sql, vars, err := compiler.WithLogger(logger).ToSQL(query, req)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{"sql": sql, "args": vars})
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileFile, "file", "f", "", "connection definition file")
	_ = compileCmd.MarkFlagRequired("file")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return errors.Wrap(enc.Encode(v), "cannot write output")
}
