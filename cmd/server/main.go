package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"socialconnect/internal/config"
	"socialconnect/internal/db"
	"socialconnect/internal/logging"
	"socialconnect/internal/router"
	"socialconnect/internal/services"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "socialconnect",
		Short:        "Social network API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newCreateAdminCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			return db.Migrate(conn, log)
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active staff account, or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := db.Migrate(conn, log); err != nil {
				return err
			}
			user, err := db.EnsureAdmin(conn, email, username, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			log.Info("admin ready", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := db.Open(cfg.Database.URL, log)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		return nil, nil, nil, err
	}
	return cfg, log, conn, nil
}

func buildDeps(cfg *config.Config, conn *gorm.DB, log *zap.Logger) (router.Deps, error) {
	supabase := services.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.PasswordResetRedirect)
	identity, err := services.NewCachedIdentity(supabase, cfg.Supabase.IdentityCacheSize, cfg.Supabase.IdentityCacheTTL)
	if err != nil {
		return router.Deps{}, err
	}
	storage := services.NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.Key)
	maxImage := cfg.Upload.MaxImageBytes

	notifications := services.NewNotificationService(conn, log)
	follows := services.NewFollowService(conn, notifications, log)
	posts := services.NewPostService(conn, storage, cfg.Supabase.PostBucket, maxImage, log)

	return router.Deps{
		DB:            conn,
		Users:         services.NewUserService(conn, identity, log),
		Profiles:      services.NewProfileService(conn, follows, storage, cfg.Supabase.AvatarBucket, maxImage, log),
		Follows:       follows,
		Posts:         posts,
		Engagement:    services.NewEngagementService(conn, notifications, log),
		Feed:          services.NewFeedService(conn, follows, cfg.Feed.PageSize),
		Notifications: notifications,
		Admin:         services.NewAdminService(conn, posts, log),
		SessionSecret: cfg.Server.SessionSecret,
		SecureCookies: cfg.Server.Mode == gin.ReleaseMode,
		MaxImageBytes: maxImage,
		Log:           log,
	}, nil
}

func runServe(parent context.Context) error {
	cfg, log, conn, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := db.Migrate(conn, log); err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	deps, err := buildDeps(cfg, conn, log)
	if err != nil {
		return err
	}
	engine := router.New(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("server stopped")
	return nil
}
