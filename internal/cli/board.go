package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/application/query"
	"github.com/planboard/planboard-core/internal/domain/ranking"
	"github.com/planboard/planboard-core/pkg/logger"
)

var (
	boardMode     string
	boardProjects []string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print the ranked project board",
	Long: `Recompute progress for the selected projects and print them in ranking order.

Without --mode the mode saved with 'boardctl mode set' is used.`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().StringVarP(&boardMode, "mode", "m", "", "Ranking mode: "+modeList())
	boardCmd.Flags().StringSliceVarP(&boardProjects, "project", "p", nil, "Project IDs (default: all)")
}

func runBoard(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		mode, err := resolveMode(boardMode, a.Config.App.DefaultRankingMode)
		if err != nil {
			return err
		}
		if err := a.Directory.Refresh(ctx); err != nil {
			a.Logger.Warn("directory refresh failed, names may be missing", logger.Err(err))
		}
		view, err := a.Board.Handle(ctx, query.GetBoardQuery{ProjectIDs: boardProjects, Mode: mode})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out(cmd), view)
		}
		return renderBoard(out(cmd), view)
	})
}

// resolveMode prefers the flag, then the saved preference, then fallback.
func resolveMode(flag string, fallback ranking.Mode) (ranking.Mode, error) {
	if flag != "" {
		return ranking.ParseMode(flag)
	}
	store, err := settingsStore()
	if err != nil {
		return fallback, nil
	}
	if _, err := os.Stat(store.Path()); errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	saved, err := store.Load()
	if err != nil {
		return "", err
	}
	return saved.RankingMode, nil
}

func renderBoard(w io.Writer, view *query.BoardView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tPROJECT\tPROGRESS\tDUE\tRESPONSIBLE\n")
	for _, e := range view.Entries {
		progress := "n/a"
		if e.ProgressKnown {
			progress = fmt.Sprintf("%d/%d (%d%%)", e.CompletedTasks, e.TotalTasks, e.Percentage)
		}
		due := e.EndDate
		if due == "" {
			due = "-"
		} else if e.IsOverdue && !e.IsCompleted {
			due += " !"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Position, e.Name, progress, due, e.ResponsiblesText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var notes []string
	notes = append(notes, "mode: "+view.Mode.Label())
	if view.Degraded {
		notes = append(notes, "task store unavailable, showing last known progress")
	}
	if len(view.Failed) > 0 {
		notes = append(notes, "failed: "+strings.Join(view.Failed, ", "))
	}
	_, err := fmt.Fprintln(w, strings.Join(notes, "; "))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func modeList() string {
	modes := ranking.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
