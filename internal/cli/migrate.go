package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/infrastructure/persistence/postgres"
)

var (
	migrateRollback bool
	migrateStatus   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Roll back the last applied migration")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status only")
	migrateCmd.MarkFlagsMutuallyExclusive("rollback", "status")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		m := postgres.NewMigrator(a.DB)
		w := out(cmd)

		switch {
		case migrateStatus:
			migrations, err := m.Status(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "VERSION\tNAME\tAPPLIED\n")
			for _, mig := range migrations {
				applied := "pending"
				if mig.IsApplied {
					applied = mig.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
			}
			return tw.Flush()

		case migrateRollback:
			if err := m.Rollback(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(w, "rolled back the last migration")
			return err

		default:
			applied, err := m.Migrate(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "applied %d migration(s)\n", applied)
			return err
		}
	})
}
