package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/application/query"
)

var progressProjects []string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Recompute and print task progress per project",
	RunE:  runProgress,
}

func init() {
	progressCmd.Flags().StringSliceVarP(&progressProjects, "project", "p", nil, "Project IDs (default: all)")
}

func runProgress(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		ids := progressProjects
		if len(ids) == 0 {
			var err error
			if ids, err = a.Projects.ListProjectIDs(ctx); err != nil {
				return err
			}
		}

		// A one-off pass must not replace the aggregate workers publish.
		agg, err := a.Sessions.For("").ComputeAll(ctx, ids)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out(cmd), agg)
		}
		return renderProgress(out(cmd), agg)
	})
}

func renderProgress(w io.Writer, agg query.Aggregate) error {
	ids := make([]string, 0, len(agg.Progress))
	for id := range agg.Progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PROJECT\tDONE\tTOTAL\tPERCENT\n")
	for _, id := range ids {
		p := agg.Progress[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\n", id, p.CompletedTasks, p.TotalTasks, p.Percentage)
	}
	for _, id := range agg.Failed {
		fmt.Fprintf(tw, "%s\t-\t-\tfailed\n", id)
	}
	return tw.Flush()
}
