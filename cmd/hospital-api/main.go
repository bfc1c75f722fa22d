package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/hims-api/api/swagger"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/repository"
	"github.com/noah-isme/hims-api/internal/service"
	"github.com/noah-isme/hims-api/pkg/config"
	"github.com/noah-isme/hims-api/pkg/database"
	"github.com/noah-isme/hims-api/pkg/logger"
)

// @title Hospital Information Management API
// @version 1.0.0
// @description Clients, health programs and enrollments with referential integrity.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:           "hospital-api",
		Short:         "Hospital information management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			count, err := database.NewMigrator(db, logr).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or promote an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			created, err := newAuthService(db, cfg, logr).EnsureAdmin(ctx, req)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Administrator %s created.\n", req.Email)
			} else {
				fmt.Printf("User %s promoted to administrator.\n", req.Email)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "administrator email")
	cmd.Flags().StringVar(&req.Password, "password", "", "administrator password")
	cmd.Flags().StringVar(&req.FullName, "full-name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func newAuthService(db *sqlx.DB, cfg *config.Config, logr *zap.Logger) *service.AuthService {
	return service.NewAuthService(repository.NewUserRepository(db), service.NewValidator(), logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
}
