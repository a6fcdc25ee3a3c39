package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Alp4ka/connpager"
)

var (
	cfg        Config
	configPath string
	v          = viper.New()
	logger     = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:           "connpager",
	Short:         "Compiles and runs keyset paginated connection queries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(v, configPath); err != nil {
			return err
		}

		return setupLogger(logger, cfg)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./connpager.yaml)")
	flags.String("dialect", "postgres", "sql dialect: postgres, mysql or sqlite")
	flags.String("dsn", "", "database connection string")
	flags.String("catalog", "", "catalog file used to validate definitions")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format: text or json")
	flags.Int("max-limit", connpager.MaxLimit, "maximum page size, 0 disables clamping")
	flags.Int("cache-budget", connpager.DefaultCacheBudget, "definition cache budget in bytes")

	for _, name := range []string{"dialect", "dsn", "catalog", "log-level", "log-format", "max-limit", "cache-budget"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(compileCmd, fetchCmd)
}

// loadDefinition reads, validates and builds the definition file.
func loadDefinition(path string) (*connpager.Query, connpager.PaginationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, connpager.PaginationRequest{}, errors.Wrap(err, "cannot read definition")
	}

	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, connpager.PaginationRequest{}, err
	}

	loader, err := connpager.NewDefinitionLoader(cfg.CacheBudget)
	if err != nil {
		return nil, connpager.PaginationRequest{}, err
	}

	definition, err := loader.Load(catalog, string(data))
	if err != nil {
		return nil, connpager.PaginationRequest{}, err
	}
	// The loader shares cached definitions, adjust a copy.
	d := *definition
	if d.MaxLimit == 0 {
		d.MaxLimit = definitionMaxLimit(cfg.MaxLimit)
	}

	return d.Build()
}

// definitionMaxLimit maps the "0 disables clamping" flag onto Definition.MaxLimit.
func definitionMaxLimit(maxLimit int) int {
	if maxLimit == 0 {
		return -1
	}

	return maxLimit
}
