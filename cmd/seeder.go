package cmd

import (
	"errors"
	"log"

	"github.com/frahmantamala/property-evaluation/internal"
	"github.com/frahmantamala/property-evaluation/internal/auth"
	authPostgres "github.com/frahmantamala/property-evaluation/internal/auth/postgres"
	"github.com/frahmantamala/property-evaluation/internal/rbac"
	rbacPostgres "github.com/frahmantamala/property-evaluation/internal/rbac/postgres"
	"github.com/frahmantamala/property-evaluation/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	seedAdminUsername string
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default permission catalog",
	Long: `Create the default permissions and roles if they are missing, and
optionally a bootstrap admin user holding the Admin role. Safe to run
more than once; existing rows are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		logger.InitWithLevel(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
		lg := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		authService := auth.NewService(authPostgres.NewRepository(gormDB), nil, cfg.Security.BCryptCost)
		rbacService := rbac.NewService(rbacPostgres.NewRepository(gormDB), authService, lg)

		if err := rbacService.InitializeDefaultData(); err != nil {
			log.Fatalf("failed to seed default RBAC data: %v", err)
		}
		lg.Info("default permissions and roles are in place")

		if seedAdminPassword == "" {
			lg.Info("no --admin-password given, skipping admin user creation")
			return
		}

		user, err := rbacService.CreateUser(rbac.CreateUserDTO{
			Username:  seedAdminUsername,
			Email:     seedAdminEmail,
			Password:  seedAdminPassword,
			RoleNames: []string{rbac.RoleAdmin},
		})
		if err != nil {
			if errors.Is(err, internal.ErrDuplicateUser) {
				lg.Info("admin user already exists, leaving it untouched", "username", seedAdminUsername)
				return
			}
			log.Fatalf("failed to create admin user: %v", err)
		}

		lg.Info("created bootstrap admin user", "user_id", user.ID, "username", user.Username)
	},
}
