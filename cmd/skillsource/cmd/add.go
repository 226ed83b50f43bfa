package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barysiuk/skillsource/internal/core"
)

var addCmd = &cobra.Command{
	Use:   "add <source>",
	Short: "Declare a skill source in skillsource.jsonc",
	Long: `Append a source to skillsource.jsonc, creating the file if needed.
Comments and formatting in the existing file are kept.

Sources can be:
  owner/repo                              default branch, skills/ directory
  owner/repo@v1.2.0                       a branch, tag or commit
  owner/repo@main:agents/skills           a different skills directory
  https://github.com/owner/repo/tree/main/agents/skills

Run 'skillsource install' afterwards to fetch the new skills.`,
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

		skillsFlag, _ := cmd.Flags().GetString("skills")
		if err := core.AddSource(p.dir, core.SourceSpec{Source: args[0], Skills: splitList(skillsFlag)}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", src.Repo, core.ConfigFileName)
		return nil
	},
}

func init() {
	addCmd.Flags().String("skills", "", "Comma-separated skill names or glob patterns to allow (default: all)")
	rootCmd.AddCommand(addCmd)
}
