package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"savrdv/internal/clients"
	"savrdv/internal/config"
	"savrdv/internal/notify"
	"savrdv/internal/service/scheduling"
	"savrdv/internal/store/postgres"
	httpTransport "savrdv/internal/transport/http"
)

var rootCmd = &cobra.Command{
	Use:   "savrdv-server",
	Short: "RDV scheduling service: technician slots, availability, appointment requests",
	RunE:  runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "savrdv-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return err
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "savrdv-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Error("database connection failed", slog.Any("err", err))
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	senders := []notify.Sender{notify.NewLogSender(log)}
	if cfg.SendgridAPIKey != "" {
		senders = append(senders, notify.NewEmailSender(notify.EmailSenderConfig{
			APIKey:       cfg.SendgridAPIKey,
			FromEmail:    cfg.SendgridFromEmail,
			FromName:     cfg.SendgridFromName,
			ManagerEmail: cfg.SendgridManagerEmail,
		}, nil))
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyBufferSize, log, senders...)
	defer dispatcher.Close()

	slotRepo := postgres.NewSlotRepo(db)
	requestRepo := postgres.NewRequestRepo(db)
	svc := scheduling.NewService(slotRepo, requestRepo, dispatcher, log)
	if cfg.InterventionRegistryURL != "" {
		svc = svc.WithInterventionRegistry(clients.NewHTTPInterventionRegistry(cfg.InterventionRegistryURL))
	}

	var directory clients.TechnicianDirectory
	if cfg.TechnicianDirectoryURL != "" {
		directory = clients.NewHTTPDirectory(cfg.TechnicianDirectoryURL)
	}

	router := httpTransport.NewRouter(
		httpTransport.RouterConfig{JWTSecret: cfg.JWTSecret},
		httpTransport.NewSlotsHandler(svc, directory, log),
		httpTransport.NewRequestsHandler(svc, log),
		log,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http graceful shutdown failed; forcing close", slog.Any("err", err))
			_ = srv.Close()
		} else {
			log.Info("http server stopped")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			return err
		}
	}

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
