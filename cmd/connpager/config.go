package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Alp4ka/connpager"
)

const envPrefix = "CONNPAGER"

// Config is read from connpager.yaml, CONNPAGER_* environment variables and
// flags, later sources win.
type Config struct {
	Dialect     string `mapstructure:"dialect"`
	DSN         string `mapstructure:"dsn"`
	Executor    string `mapstructure:"executor"`
	Catalog     string `mapstructure:"catalog"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MaxLimit    int    `mapstructure:"max-limit"`
	CacheBudget int    `mapstructure:"cache-budget"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", "postgres")
	v.SetDefault("executor", "gorm")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("max-limit", connpager.MaxLimit)
	v.SetDefault("cache-budget", connpager.DefaultCacheBudget)
}

// loadConfig reads the config file when there is one. A missing default
// config file is not an error, a missing explicit one is.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("connpager")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "cannot read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "cannot decode config")
	}

	return cfg, nil
}

func setupLogger(logger *logrus.Logger, cfg Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		return errors.Errorf("invalid log format '%s'", cfg.LogFormat)
	}

	return nil
}

// dialector returns the gorm dialector of the configured dialect. An empty
// DSN gives a dialector good for rendering only.
func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Dialect {
	case "postgres":
		return postgres.New(postgres.Config{DSN: cfg.DSN}), nil
	case "mysql":
		return mysql.New(mysql.Config{DSN: cfg.DSN, SkipInitializeWithVersion: cfg.DSN == ""}), nil
	case "sqlite":
		return &sqlite.Dialector{DriverName: "sqlite", DSN: cfg.DSN}, nil
	default:
		return nil, errors.Wrapf(connpager.ErrUnsupportedDialect, "'%s', supported: %s", cfg.Dialect, strings.Join(connpager.Dialects(), ", "))
	}
}

// sqlDriverName is the database/sql driver registered for the dialect.
func sqlDriverName(dialect string) string {
	switch dialect {
	case "postgres":
		return "pgx"
	default:
		return dialect
	}
}

func loadCatalog(path string) (*connpager.Catalog, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read catalog")
	}

	return connpager.ParseCatalog(data)
}
