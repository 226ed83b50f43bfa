package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barysiuk/skillsource/internal/core"
)

var removeCmd = &cobra.Command{
	Use:   "remove <owner/repo>",
	Short: "Remove a skill source from skillsource.jsonc",
	Long: `Remove a source declaration from skillsource.jsonc. Its curated skills and
lock entry are dropped on the next 'skillsource install'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		src, err := core.ParseSource(args[0])
		if err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}

		removed, err := core.RemoveSource(p.dir, src.Repo)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("source %s is not declared in %s", src.Repo, core.ConfigFileName)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", src.Repo, core.ConfigFileName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
