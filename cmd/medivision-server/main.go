package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medivision/medivision/internal/config"
	"github.com/medivision/medivision/internal/domain/identity"
	"github.com/medivision/medivision/internal/domain/statistics"
	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/db"
	"github.com/medivision/medivision/internal/platform/logging"
	"github.com/medivision/medivision/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "medivision-server",
		Short:        "Medivision appointment and retail back-office API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(userCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// env is what every command needs: validated config, a logger and a pool.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	loc    *time.Location
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg)

	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Timezone: tzName(loc),
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, pool: pool, loc: loc}, nil
}

// tzName is the session TimeZone for Postgres. time.Local has no IANA name
// to hand over, so the server default is kept.
func tzName(loc *time.Location) string {
	if loc == time.Local {
		return ""
	}
	return loc.String()
}

// migrationsFS prefers dir on disk and falls back to the embedded set.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = e.cfg.MigrationsDir
			}
			count, err := db.NewMigrator(e.pool, migrationsFS(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = e.cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(e.pool, migrationsFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Maintain the daily sales statistics",
	}

	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute every day of the sales history, or of --from..--to",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			svc := statistics.NewService(statistics.NewRepoPG(e.pool), db.NewTxManager(e.pool), e.loc, e.logger)
			fromRaw, _ := cmd.Flags().GetString("from")
			toRaw, _ := cmd.Flags().GetString("to")
			from, err := svc.ParseDay(fromRaw, "from")
			if err != nil {
				return err
			}
			to, err := svc.ParseDay(toRaw, "to")
			if err != nil {
				return err
			}
			n, err := svc.BackfillRange(ctx, from, to)
			if err != nil {
				return fmt.Errorf("backfill failed after %d day(s): %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d day(s).\n", n)
			return nil
		},
	}
	backfill.Flags().String("from", "", "First day (YYYY-MM-DD), defaults to the oldest sale")
	backfill.Flags().String("to", "", "Last day (YYYY-MM-DD), defaults to the newest sale")
	cmd.AddCommand(backfill)

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute a single day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			svc := statistics.NewService(statistics.NewRepoPG(e.pool), db.NewTxManager(e.pool), e.loc, e.logger)
			raw, _ := cmd.Flags().GetString("date")
			day, err := svc.ParseDay(raw, "date")
			if err != nil {
				return err
			}
			t := time.Now()
			if day != nil {
				t = *day
			}
			if err := svc.RecomputeDay(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %s.\n", t.In(e.loc).Format("2006-01-02"))
			return nil
		},
	}
	recompute.Flags().String("date", "", "Day to recompute (YYYY-MM-DD), defaults to today")
	cmd.AddCommand(recompute)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if name == "" || email == "" || password == "" {
				return fmt.Errorf("--name, --email and --password are required")
			}

			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			svc := identity.NewService(
				db.NewTxManager(e.pool),
				identity.NewUserRepoPG(e.pool),
				identity.NewDoctorRepoPG(e.pool),
				identity.NewPatientRepoPG(e.pool),
				auth.NewTokenIssuer(e.cfg.SigningSecret(), e.cfg.JWTIssuer, e.cfg.JWTTTL),
				false,
			)
			u, err := svc.CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s).\n", u.Email, u.ID)
			return nil
		},
	}
	createAdmin.Flags().String("name", "", "Display name")
	createAdmin.Flags().String("email", "", "Login email")
	createAdmin.Flags().String("password", "", "Initial password")
	cmd.AddCommand(createAdmin)

	return cmd
}
