package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/barysiuk/skillsource/internal/core/system"
)

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the AI tools skills can be linked into",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		detected := map[string]bool{}
		for _, s := range system.DetectInFolder(p.dir) {
			detected[s.Name()] = true
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Name\tTool\tSkills dir\tDetected\tSignals")
		for _, s := range system.All() {
			mark := ""
			if detected[s.Name()] {
				mark = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name(), s.DisplayName(), s.SkillsDir(), mark, strings.Join(s.DetectionSignals(), ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(systemsCmd)
}
