package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"invoice-desk/internal/access"
	"invoice-desk/internal/auth"
	"invoice-desk/internal/config"
	"invoice-desk/internal/handlers"
	"invoice-desk/internal/invoice"
	"invoice-desk/internal/notify"
	"invoice-desk/internal/notion"
	"invoice-desk/internal/storage"
	"invoice-desk/internal/submission"
	"invoice-desk/internal/validate"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Server.LogFormat, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.NewDB(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	h, err := newHandlers(cfg, db, logger)
	if err != nil {
		return err
	}

	go sweepSessions(ctx, db, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           setupRouter(h, cfg.Server.StaticDir),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Room for a Notion create plus the webhook call.
		WriteTimeout: cfg.Notion.Timeout + cfg.Webhook.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHandlers(cfg *config.Config, db *storage.DB, logger *slog.Logger) (*handlers.Handlers, error) {
	policy := access.NewPolicy(cfg.Access.AllowedDomains, cfg.Access.AllowedEmails)
	if policy.Empty() {
		logger.Warn("access policy is empty; every sign-in will be denied")
	} else {
		logger.Info("access policy loaded", "rules", policy.Rules())
	}

	validator, err := validate.New()
	if err != nil {
		return nil, err
	}

	notionClient := notion.NewClient(cfg.Notion.APIKey,
		notion.WithBaseURL(cfg.Notion.BaseURL),
		notion.WithVersion(cfg.Notion.Version),
		notion.WithHTTPClient(&http.Client{Timeout: cfg.Notion.Timeout}),
		notion.WithLogger(logger),
	)

	webhook := notify.NewWebhook(cfg.Webhook.URL, &http.Client{Timeout: cfg.Webhook.Timeout}, logger)
	if !webhook.Enabled() {
		logger.Warn("WEBHOOK_URL not set; notifications are disabled")
	}

	submissions := submission.New(submission.Config{
		Gate:      policy,
		Validator: validator,
		Store:     notionClient,
		Notifier:  webhook,
		Databases: submission.Databases{
			Consulting: cfg.Notion.ConsultingDatabaseID,
			Expense:    cfg.Notion.ExpenseDatabaseID,
		},
		StoreTimeout:  cfg.Notion.Timeout,
		NotifyTimeout: cfg.Webhook.Timeout,
	})

	sequencer := invoice.NewSequencer(notionClient, cfg.Notion.ConsultingDatabaseID,
		invoice.WithTimeout(cfg.Notion.Timeout),
	)

	provider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
	})

	return handlers.NewHandlers(handlers.Deps{
		DB:              db,
		TemplateDir:     cfg.Server.TemplatesDir,
		SecureCookie:    cfg.Server.SecureCookie,
		SessionDuration: cfg.Server.SessionDuration,
		Policy:          policy,
		Provider:        provider,
		States:          auth.NewStateSigner([]byte(cfg.Server.SessionSecret), handlers.SignInWindow),
		Submissions:     submissions,
		Invoices:        sequencer,
		Logger:          logger,
	}), nil
}

func setupRouter(h *handlers.Handlers, staticDir string) http.Handler {
	mux := http.NewServeMux()

	// Static files
	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	// Public routes
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("GET /auth/google", h.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.GoogleCallback)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /unauthorized", h.Unauthorized)

	// Protected routes
	mux.Handle("GET /{$}", h.AuthMiddleware(http.HandlerFunc(h.Home)))
	mux.Handle("POST /create-invoice", h.APIAuthMiddleware(http.HandlerFunc(h.CreateInvoice)))
	mux.Handle("GET /get-next-invoice", h.APIAuthMiddleware(http.HandlerFunc(h.GetNextInvoice)))

	return h.RequestLogger(mux)
}

func sweepSessions(ctx context.Context, db *storage.DB, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		if n, err := db.CleanExpiredSessions(); err != nil {
			logger.Error("expired session cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("expired sessions removed", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
