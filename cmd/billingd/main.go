package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/caribevillas/billing/internal/httpserver"
	"github.com/caribevillas/billing/internal/oplog"
	"github.com/caribevillas/billing/internal/store/gormstore"
	"github.com/caribevillas/billing/pkg/billing"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagTokenSigningKey  = "token-signing-key"
	flagTokenIssuer      = "token-issuer"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "listen_addr"
	configKeyOrigins     = "allowed_origins"
	configKeySigningKey  = "token_signing_key"
	configKeyIssuer      = "token_issuer"
	defaultDatabaseURL   = "sqlite:///tmp/billing.db"
	defaultListenAddr    = ":8080"
)

type runtimeConfig struct {
	DatabaseURL     string
	ListenAddr      string
	AllowedOrigins  []string
	TokenSigningKey string
	TokenIssuer     string
}

func main() {
	_ = godotenv.Load()
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "billingd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "billingd",
		Short:         "Villa rental billing and reconciliation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")
	cmd.Flags().String(flagTokenSigningKey, "", "HMAC key for bearer tokens")
	cmd.Flags().String(flagTokenIssuer, "", "expected token issuer")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeyOrigins:     "ALLOWED_ORIGINS",
		configKeySigningKey:  "TOKEN_SIGNING_KEY",
		configKeyIssuer:      "TOKEN_ISSUER",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyOrigins:     flagAllowedOrigins,
		configKeySigningKey:  flagTokenSigningKey,
		configKeyIssuer:      flagTokenIssuer,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)
	cfg.TokenSigningKey = viper.GetString(configKeySigningKey)
	cfg.TokenIssuer = viper.GetString(configKeyIssuer)

	if cfg.TokenSigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }
	billingService, err := billing.NewService(store, clock,
		billing.WithOperationLogger(oplog.New(logger)))
	if err != nil {
		return fmt.Errorf("billing service init: %w", err)
	}

	server := httpserver.New(billingService, logger, httpserver.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		TokenSigningKey: cfg.TokenSigningKey,
		TokenIssuer:     cfg.TokenIssuer,
	})
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	cfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "billing.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
