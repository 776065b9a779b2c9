package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quick-analysis/backend/internal/api"
	"github.com/quick-analysis/backend/internal/config"
	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/scheduler"
	"github.com/quick-analysis/backend/internal/session"
	"github.com/quick-analysis/backend/internal/storage"
)

const (
	defaultConfigName = "quickscan.config.xml"
	shutdownTimeout   = 10 * time.Second
	cleanupJobName    = "session-cleanup"
)

func newServeCommand(version, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), version, buildTime)
		},
	}
}

// loadEnvironment reads the dotenv file if present. A missing file is not
// an error.
func loadEnvironment() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func resolveConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), defaultConfigName), nil
}

func loadConfig() (*config.AppConfig, string, error) {
	if err := loadEnvironment(); err != nil {
		return nil, "", err
	}
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, path, nil
}

func newStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return storage.NewMinioStore(ctx, cfg.MinioSettings())
	default:
		return storage.NewLocalStore(cfg.GetUploadDir())
	}
}

func newSessionManager(cfg *config.AppConfig, store storage.Store) *session.Manager {
	return session.NewManager(session.Options{
		Store:          store,
		Analysis:       cfg.AnalysisTimeline(),
		Rules:          cfg.StagingRules(),
		ResetPolicy:    cfg.ResetPolicy(),
		AllowStartOver: cfg.Analysis.AllowStartOver,
		DefaultLocale:  cfg.Analysis.DefaultLocale,
		MaxSessions:    cfg.Session.MaxSessions,
	})
}

func runServe(ctx context.Context, out io.Writer, version, buildTime string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Advanced.LogLevel)
	api.ShowErrorDetails = logger.Level() >= logrus.DebugLevel

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	sessionMgr := newSessionManager(cfg, store)
	defer sessionMgr.Close()

	sched := scheduler.NewScheduler()
	maxAge := cfg.SessionMaxAge()
	if err := sched.Schedule(cleanupJobName, cfg.Session.CleanupSchedule, func() {
		if n := sessionMgr.CleanupOldSessions(maxAge); n > 0 {
			logger.WithFields(logrus.Fields{"removed": n, "active": sessionMgr.Count()}).Info("expired sessions cleaned up")
		}
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	bodyLimit, err := cfg.BodyLimitBytes()
	if err != nil {
		return err
	}

	e := api.NewServer(&api.Dependencies{
		Sessions:         sessionMgr,
		Version:          version,
		ProgressInterval: time.Duration(cfg.Advanced.ProgressIntervalMs) * time.Millisecond,
		WSMaxMessageKB:   cfg.Advanced.WebSocketMaxMessageSize,
	}, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.AllowOriginList(),
		BodyLimit:      bodyLimit,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
	})

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(out, version, buildTime, configPath, cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func printBanner(out io.Writer, version, buildTime, configPath string, cfg *config.AppConfig) {
	maxSize, _ := cfg.MaxFileSizeBytes()
	storageDesc := cfg.GetUploadDir()
	if cfg.Storage.Backend == "minio" {
		storageDesc = fmt.Sprintf("minio://%s/%s", cfg.Storage.Minio.Endpoint, cfg.Storage.Minio.Bucket)
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "║           Medical Quick Analysis Server                   ║\n")
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Version:    %-45s║\n", version)
	fmt.Fprintf(out, "║  Build Time: %-45s║\n", buildTime)
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(out, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(out, "║  Storage:   %-46s║\n", storageDesc)
	fmt.Fprintf(out, "║  Max File:  %-46s║\n", humanize.IBytes(uint64(maxSize)))
	fmt.Fprintf(out, "║  Analysis:  %-46s║\n", cfg.AnalysisTimeline().CompletionDelay)
	fmt.Fprintf(out, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(out, "\n")
}
