package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/questionai/internal/exam"
	"github.com/pavelanni/questionai/internal/handler"
	appI18n "github.com/pavelanni/questionai/internal/i18n"
	"github.com/pavelanni/questionai/internal/model"
	"github.com/pavelanni/questionai/internal/store"
)

const adminEmail = "admin@localhost"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "questionai",
		Short: "Mock exam generator and timed exam server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), useraddCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `questionai --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "questionai.db", "SQLite path or PostgreSQL DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Fallback language for messages and questions (en, ru)")
	f.Duration("exam-budget", exam.DefaultBudget*time.Second, "Time allowed for one exam attempt")
	f.Duration("submit-timeout", 10*time.Second, "Time limit for saving a result when the countdown expires")
	f.Duration("session-retention", 30*time.Minute, "How long finished attempts stay available in memory")
	f.Int64("max-upload-mb", 10, "Maximum PDF upload size in megabytes")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("jwt-secret", "", "HMAC secret for API bearer tokens (or set QUESTIONAI_JWT_SECRET)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable)")
	f.String("admin-password", "", "Initial admin password (or set QUESTIONAI_ADMIN_PASSWORD)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.String("user", "", "Only export results owned by this email")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func useraddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user account",
		RunE:  runUseradd,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.String("email", "", "Account email (required)")
	f.String("password", "", "Account password (required)")
	f.String("display-name", "", "Display name (defaults to the email)")
	f.Bool("admin", false, "Grant the admin role")

	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUESTIONAI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("questionai")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/questionai")
	v.AddConfigPath("/etc/questionai")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	db, err := store.Open(ctx, store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.Config{
		ExamBudget:       v.GetDuration("exam-budget"),
		SubmitTimeout:    v.GetDuration("submit-timeout"),
		SessionRetention: v.GetDuration("session-retention"),
		MaxUploadBytes:   v.GetInt64("max-upload-mb") << 20,
		SecureCookies:    v.GetBool("secure-cookies"),
		JWTSecret:        v.GetString("jwt-secret"),
		CORSOrigins:      v.GetStringSlice("cors-origins"),
	}

	exams := exam.NewManager(db, exam.ManagerConfig{
		Budget:        cfg.ExamBudget,
		SubmitTimeout: cfg.SubmitTimeout,
	})
	defer exams.Close()

	h, err := handler.New(db, exams, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware)
	h.Routes(r)

	go janitor(ctx, db, exams, cfg.SessionRetention)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", lang,
		"exam_budget", cfg.ExamBudget,
		"session_retention", cfg.SessionRetention,
		"cors_origins", cfg.CORSOrigins,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// janitor periodically drops finished exam sessions and expired logins.
func janitor(ctx context.Context, db *store.Store, exams *exam.Manager, retention time.Duration) {
	interval := retention / 2
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n := exams.Prune(retention); n > 0 {
			slog.Debug("pruned exam sessions", "count", n)
		}
		if n, err := db.CleanupExpiredSessions(ctx); err != nil {
			slog.Warn("failed to clean up auth sessions", "error", err)
		} else if n > 0 {
			slog.Debug("removed expired auth sessions", "count", n)
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	owner := v.GetString("user")
	results, err := db.ExportResults(ctx, owner)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	if results == nil {
		results = []model.ExportResult{}
	}

	export := model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		Owner:      owner,
		NumResults: len(results),
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", len(results), "output", outPath)
	return nil
}

func runUseradd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	role := model.UserRoleMember
	if v.GetBool("admin") {
		role = model.UserRoleAdmin
	}
	_, err = createUser(ctx, db, v.GetString("email"), v.GetString("password"), v.GetString("display-name"), role)
	return err
}

func createUser(ctx context.Context, db *store.Store, email, password, displayName string, role model.UserRole) (int64, error) {
	existing, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, fmt.Errorf("user %s already exists", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if displayName == "" {
		displayName = email
	}

	id, err := db.CreateUser(ctx, model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		slog.Warn("no users exist and no admin password is set; register accounts via /auth/register or useradd")
		return nil
	}

	if _, err := createUser(ctx, db, adminEmail, password, "Administrator", model.UserRoleAdmin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "email", adminEmail)
	return nil
}
