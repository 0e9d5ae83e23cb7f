package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/nimasrn/lending-admin/internal/config"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/internal/services"
	"github.com/nimasrn/lending-admin/migrations"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string
	root := &cobra.Command{
		Use:           "lending-cli",
		Short:         "Maintenance commands for the lending admin backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path of a .env file to load")

	root.AddCommand(newMigrateCmd(), newSeedAdminCmd(), newRefreshDashboardCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run goose migrations against the write database",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")

	run := func(command string) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			var fsys fs.FS = migrations.FS
			path := "."
			if dir != "" {
				fsys, path = nil, dir
			}
			return pg.Migrate(c.Context(), config.Get().PostgresWrite(), fsys, path, command, args...)
		}
	}
	for _, sub := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print the status of every migration"},
		{"redo", "Roll back and re-apply the latest migration"},
		{"version", "Print the current schema version"},
	} {
		cmd.AddCommand(&cobra.Command{Use: sub.use, Short: sub.short, RunE: run(sub.use)})
	}
	return cmd
}

func openDB() (*pg.DB, error) {
	c := config.Get()
	return pg.CreateReadWrite(c.PostgresWrite(), c.PostgresWrite(), false)
}

func newSeedAdminCmd() *cobra.Command {
	var in adminInput
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create a MASTER_ADMIN user",
		RunE: func(c *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			u, err := seedAdmin(c.Context(), repository.NewUserRepository(db), in)
			if err != nil {
				return err
			}
			logger.Info("master admin created", "id", u.ID, "email", u.Email)
			fmt.Fprintf(c.OutOrStdout(), "created %s (id %d)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, defaults to $ADMIN_PASSWORD")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRefreshDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-dashboard",
		Short: "Recompute the dashboard snapshot once",
		RunE: func(c *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return refreshDashboard(c.Context(), db, c.OutOrStdout())
		},
	}
}

func refreshDashboard(ctx context.Context, db *pg.DB, out io.Writer) error {
	svc := services.NewDashboardService(repository.NewDashboardRepository(db), repository.NewReportRepository(db))
	snap, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}
	k := snap.KPIs.Data()
	_, err = fmt.Fprintf(out, "snapshot refreshed: %d tenants, %d users, %d loans\n", k.TotalTenants, k.ActiveUsers, k.TotalLoans)
	return err
}
