package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlequest/internal/app"
)

func newProgressCmd(opts *options) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or reset a player's saved progress",
	}
	cmd.PersistentFlags().StringVar(&owner, "owner", "", "player id (user id or anonymous id)")
	_ = cmd.MarkPersistentFlagRequired("owner")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print unlocked levels, high scores and stars",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			a, err := app.Open(cmd.Context(), cfg, logger(cfg))
			if err != nil {
				return err
			}
			defer a.Close()

			repo := a.Progress(owner)
			recs, err := repo.All(cmd.Context(), a.Catalog.Count())
			if err != nil {
				return err
			}
			settings, err := repo.Settings(cmd.Context())
			if err != nil {
				return err
			}

			var b strings.Builder
			b.WriteString(titleStyle.Render("Progress of "+owner) + "\n")
			for _, p := range recs {
				lvl, _ := a.Catalog.Level(p.Level)
				state := mutedStyle.Render("locked")
				if p.Unlocked {
					state = goodStyle.Render("open  ")
				}
				fmt.Fprintf(&b, "%s %-20s %s %5d %s\n", keyStyle.Render(fmt.Sprintf("%2d", p.Level)), lvl.Name, state, p.HighScore, starsBadge(p.Stars))
			}
			fmt.Fprintf(&b, "sound %v  music %v", settings.SoundEnabled, settings.MusicEnabled)
			fmt.Fprintln(cmd.OutOrStdout(), panel.Render(b.String()))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete a player's progress and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			a, err := app.Open(cmd.Context(), cfg, logger(cfg))
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Progress(owner).Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), goodStyle.Render("reset ")+owner)
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}
