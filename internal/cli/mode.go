package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/internal/domain/ranking"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show the saved default ranking mode",
	RunE:  runModeShow,
}

var modeSetCmd = &cobra.Command{
	Use:   "set <mode>",
	Short: "Save the default ranking mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeSet,
}

var modeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available ranking modes",
	RunE:  runModeList,
}

func init() {
	modeCmd.AddCommand(modeSetCmd)
	modeCmd.AddCommand(modeListCmd)
}

func runModeShow(cmd *cobra.Command, args []string) error {
	store, err := settingsStore()
	if err != nil {
		return err
	}
	s, err := store.Load()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out(cmd), "%s (%s)\n", s.RankingMode, s.RankingMode.Label())
	return err
}

func runModeSet(cmd *cobra.Command, args []string) error {
	mode, err := ranking.ParseMode(args[0])
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, modeList())
	}
	store, err := settingsStore()
	if err != nil {
		return err
	}
	s, err := store.SetRankingMode(mode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out(cmd), "default ranking mode set to %s in %s\n", s.RankingMode, store.Path())
	return err
}

func runModeList(cmd *cobra.Command, args []string) error {
	for _, m := range ranking.Modes() {
		marker := " "
		if m == ranking.DefaultMode {
			marker = "*"
		}
		if _, err := fmt.Fprintf(out(cmd), "%s %-14s %s\n", marker, m, m.Label()); err != nil {
			return err
		}
	}
	return nil
}
