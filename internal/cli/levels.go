package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlequest/internal/catalog"
)

func newLevelsCmd(opts *options) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the level catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			cat, err := catalog.Load(cfg.LevelsFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if validate {
				fmt.Fprintf(out, "%s %d levels in %s\n", goodStyle.Render("ok"), cat.Count(), cat.Source())
				return nil
			}

			var b strings.Builder
			b.WriteString(titleStyle.Render("Levels") + mutedStyle.Render(" ("+cat.Source()+")") + "\n")
			for _, lvl := range cat.Levels() {
				kinds := make([]string, 0, len(lvl.Stages))
				for _, st := range lvl.Stages {
					kinds = append(kinds, string(st.Kind))
				}
				fmt.Fprintf(&b, "%s %-20s %s %s\n",
					keyStyle.Render(fmt.Sprintf("%2d", lvl.Number)),
					lvl.Name,
					mutedStyle.Render(strings.Join(kinds, " → ")),
					goldStyle.Render(fmt.Sprintf("max %d", cat.MaxScore(lvl.Number))),
				)
			}
			fmt.Fprintln(out, panel.Render(strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "only check the catalog")
	return cmd
}
