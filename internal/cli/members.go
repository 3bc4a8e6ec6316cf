package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/domain/member"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Print the member directory used to resolve assignees",
	RunE:  runMembers,
}

func runMembers(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Directory.Refresh(ctx); err != nil {
			return err
		}
		dir := a.Directory.Snapshot()
		if jsonOutput {
			return writeJSON(out(cmd), map[string]any{
				"fingerprint": dir.Fingerprint(),
				"status":      a.Directory.Status(),
				"members":     dir.Members(),
			})
		}
		return renderMembers(out(cmd), dir)
	})
}

func renderMembers(w io.Writer, dir *member.Directory) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tEMAIL\n")
	for _, m := range dir.Members() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, m.Email)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d members, fingerprint %s\n", dir.Len(), dir.Fingerprint())
	return err
}
