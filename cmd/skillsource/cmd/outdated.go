package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/barysiuk/skillsource/internal/core"
)

var outdatedCmd = &cobra.Command{
	Use:   "outdated",
	Short: "Show sources whose requested ref moved since they were locked",
	Long: `Resolve each declared source's requested ref against the remote and compare
it with the commit pinned in skillsource.lock.json. Nothing is fetched or
written; run 'skillsource install --update' to pick up the new commits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		sources, err := p.cfg.ParsedSources()
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sources configured.")
			return nil
		}
		lf, err := core.ReadLockFile(p.dir)
		if err != nil {
			return err
		}

		remote, err := newRemote(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = remote.Close() }()

		updates, checkErr := core.CheckForUpdates(commandContext(cmd), remote, p.cfg, sources, lf)

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(updates, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		} else {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Source\tRequested\tLocked\tAvailable")
			for _, u := range updates {
				locked := "(not locked)"
				if u.LockedRef != "" {
					locked = core.TruncateCommit(u.LockedRef)
				}
				available := "(up to date)"
				switch {
				case u.Error != nil:
					available = "error: " + core.KindOf(u.Error).String()
				case u.HasUpdate:
					available = core.TruncateCommit(u.RemoteRef)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cell(u.Repo), cell(u.RequestedRef), locked, available)
			}
			_ = w.Flush()
		}

		return checkErr
	},
}

func init() {
	outdatedCmd.Flags().Bool("json", false, "Output as JSON for scripting")
	addTokenFlag(outdatedCmd)
	rootCmd.AddCommand(outdatedCmd)
}
