// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/composerunion/composerunion/internal/config"
	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/handler"
	"github.com/composerunion/composerunion/internal/imaging"
	"github.com/composerunion/composerunion/internal/logging"
	"github.com/composerunion/composerunion/internal/metrics"
	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/objstore"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/scheduler"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/version"
	"github.com/composerunion/composerunion/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ComposerUnion - blog and writer community site\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_GATEWAY_URL         Backend base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_GATEWAY_ANON_KEY    Backend anonymous key (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_SESSION_SECRET      Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_SERVER_PORT         Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_ENV                 Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_SESSION_STORE       Session store: memory|sqlite|redis (default: memory)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_STORAGE_BACKEND     Image storage: gateway|minio (default: gateway)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_BLOG_CATEGORIES     Comma separated post categories\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CU_BACKEND_CHECK_SCHEDULE  Backend health check cron schedule (default: @every 1m)\n")
	}

	flag.Parse()

	info := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info *version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logging.NewRequestPathHandler(textHandler))
	slog.SetDefault(logger)

	ctx := context.Background()
	m := metrics.New("composerunion")

	gw, err := gateway.New(gateway.Config{
		URL:      cfg.GatewayURL,
		AnonKey:  cfg.GatewayAnonKey,
		Timeout:  cfg.GatewayRequestTimeout(),
		Observer: m,
	})
	if err != nil {
		return fmt.Errorf("initializing gateway client: %w", err)
	}
	unsubscribe := gw.OnAuthStateChange(func(ctx context.Context, event gateway.AuthEvent, s *gateway.Session) {
		m.ObserveAuthEvent(string(event))
		if s != nil {
			logger.DebugContext(ctx, "auth state changed", "event", event, "user_id", s.User.ID)
			return
		}
		logger.DebugContext(ctx, "auth state changed", "event", event)
	})
	defer unsubscribe()
	slog.Info("gateway client initialized", "url", cfg.GatewayURL)

	sessionStore, closeStore, err := session.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("error closing session store", "error", err)
		}
	}()
	sessionManager := session.New(sessionStore, cfg.IsDevelopment())
	slog.Info("session manager initialized", "store", cfg.SessionStore)

	images, err := objstore.New(cfg, gw)
	if err != nil {
		return fmt.Errorf("initializing image storage: %w", err)
	}
	if minio, ok := images.(*objstore.MinIO); ok {
		if err := minio.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("preparing image bucket: %w", err)
		}
	}
	slog.Info("image storage initialized", "backend", cfg.StorageBackend, "bucket", cfg.StorageBucket)

	queries := store.New(gw)
	authService := service.NewAuthService(gw, queries, logger, cfg.OAuthRedirectURL(), cfg.PasswordResetURL())
	blogService := service.NewBlogService(queries, logger)
	accountService := service.NewAccountService(queries, logger)
	imageService := service.NewImageService(images).WithNormalizer(imaging.NewProcessor(cfg.ImageMaxWidth))
	editorService := service.NewEditorService(queries, imageService)
	moderationService := service.NewModerationService(queries, logger)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS: templatesFS,
		Ads:         render.Ads{Client: cfg.AdsClient, Slot: cfg.AdsSlot},
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	slog.Info("template renderer initialized")

	shutdownCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	loginProtection := middleware.NewLoginProtection(shutdownCtx, middleware.DefaultLoginProtectionConfig())

	jobs := scheduler.New(logger, m)
	if cfg.BackendCheckSchedule != "" {
		if err := jobs.Add(scheduler.BackendHealthJob, cfg.BackendCheckSchedule, scheduler.BackendHealthCheck(gw, m)); err != nil {
			return fmt.Errorf("scheduling backend health check: %w", err)
		}
		// Set the gauge before the first tick.
		_ = jobs.RunNow(scheduler.BackendHealthJob)
	}
	jobs.Start()
	defer jobs.Stop()

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))               // Gzip compression with level 5
	r.Use(chimw.GetHead)                   // Handle HEAD requests for uptime monitoring
	r.Use(chimw.Timeout(60 * time.Second)) // Uploads pass through the backend
	r.Use(chimw.StripSlashes)
	r.Use(m.Middleware)
	r.Use(middleware.RequestPath)

	securityConfig := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment(), cfg.ImageOrigin())
	r.Use(middleware.SecurityHeaders(securityConfig))
	slog.Info("security headers middleware initialized",
		"hsts", !cfg.IsDevelopment(),
		"excluded", securityConfig.ExcludePaths,
	)

	r.Handle("/metrics", m.Handler())

	staticFS, err := fs.Sub(web.Static, "static/dist")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	csrfConfig := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.BaseURL, cfg.IsDevelopment())
	slog.Info("CSRF protection initialized", "trusted_origins", csrfConfig.TrustedOrigins)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(csrfConfig))
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.UIContext(sessionManager))
		r.Use(middleware.LoadIdentity(sessionManager, authService))

		handler.RegisterRoutes(r, handler.Handlers{
			Blog:      handler.NewBlogHandler(renderer, blogService, cfg.BlogCategories, logger),
			Auth:      handler.NewAuthHandler(renderer, sessionManager, authService, loginProtection, logger),
			Account:   handler.NewAccountHandler(renderer, accountService, logger),
			Admin:     handler.NewAdminHandler(renderer, editorService, moderationService, cfg.BlogCategories, logger),
			Health:    handler.NewHealthHandler(gw, info),
			SEO:       handler.NewSEOHandler(blogService, cfg.BaseURL, cfg.BlogCategories, cfg.RobotsDisallowAll, logger),
			Admins:    authService,
			AuthLimit: loginProtection.Middleware(),
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second, // Longer than the request timeout for image uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
