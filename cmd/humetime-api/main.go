package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/humetime/backend/internal/auth"
	"github.com/humetime/backend/internal/config"
	"github.com/humetime/backend/internal/database"
	"github.com/humetime/backend/internal/distribution"
	"github.com/humetime/backend/internal/logging"
	"github.com/humetime/backend/internal/server"
	"github.com/humetime/backend/internal/storage/ledger"
	"github.com/humetime/backend/internal/storage/sheets"
	"github.com/humetime/backend/internal/storage/workbook"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "humetime-api",
		Short: "Humetime meal-distribution log service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	cmd.PersistentFlags().String("backend", defaults.GetString("storage.backend"), "Storage backend (workbook, sheets, sqlite)")
	cmd.PersistentFlags().String("workbook-path", defaults.GetString("workbook.path"), "Spreadsheet file path for the workbook backend")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path for the sqlite backend")
	cmd.PersistentFlags().String("secret-header", defaults.GetString("auth.header"), "Request header carrying the shared secret")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "storage.backend", "backend")
	bindFlag(cmd, "workbook.path", "workbook-path")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.header", "secret-header")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		return err
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := buildStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	mealNormalizer := distribution.NewNormalizer(distribution.DefaultMealCategories)
	distributionService, err := distribution.NewService(distribution.ServiceConfig{
		Store:      store,
		Clock:      time.Now,
		Normalizer: mealNormalizer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	secretGate := auth.NewSharedSecretGate(appConfig.SharedSecret)
	if secretGate.Enabled() {
		logger.Info("shared secret required", zap.String("header", appConfig.SharedSecretHeader))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		DistributionService: distributionService,
		SecretGate:          secretGate,
		SecretHeader:        appConfig.SharedSecretHeader,
		BackendName:         appConfig.Backend,
		MealNormalizer:      mealNormalizer,
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("backend", appConfig.Backend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildStore constructs the configured backend and a release func for its resources.
func buildStore(appConfig config.AppConfig, logger *zap.Logger) (distribution.Store, func(), error) {
	noop := func() {}
	switch appConfig.Backend {
	case config.BackendWorkbook:
		store, err := workbook.NewStore(workbook.Config{
			Path:            appConfig.WorkbookPath,
			Sheet:           appConfig.WorkbookSheet,
			SerializeWrites: appConfig.WorkbookSerializeWrites,
			Logger:          logger,
		})
		return store, noop, err
	case config.BackendSheets:
		store := sheets.NewStore(sheets.Config{
			CredentialsJSON: appConfig.SheetsCredentialsJSON,
			CredentialsFile: appConfig.SheetsCredentialsFile,
			SpreadsheetID:   appConfig.SheetsSpreadsheetID,
			SheetName:       appConfig.SheetsSheetName,
			Logger:          logger,
		})
		return store, noop, nil
	case config.BackendSQLite:
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger, ledger.Schema())
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, err
		}
		store, err := ledger.NewStore(ledger.Config{
			Database:   db,
			IDProvider: ledger.NewUUIDProvider(),
			Clock:      time.Now,
			Logger:     logger,
		})
		if err != nil {
			sqlDB.Close()
			return nil, noop, err
		}
		return store, func() { sqlDB.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage backend %q", appConfig.Backend)
	}
}
