package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/barysiuk/skillsource/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show locked sources and the state of installed skills",
	Long: `Show each declared source with its locked commit, then every curated skill
and whether its content still matches skillsource.lock.json. Local skills are
listed last. Nothing is fetched.`,
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
		lf, err := core.ReadLockFile(p.dir)
		if err != nil {
			return err
		}
		local, err := core.ScanLocalSkills(p.dir, p.cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Project: %s\n", p.dir)
		if lf == nil {
			fmt.Fprintf(out, "No %s yet. Run 'skillsource install' to create it.\n", core.LockFileName)
		}

		if len(sources) > 0 {
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Source\tRequested\tLocked\tSkills")
			for _, src := range sources {
				locked, skills := "(not locked)", "-"
				if entry := lf.Entry(src.Repo); entry != nil {
					locked = core.TruncateCommit(entry.ResolvedRef)
					skills = fmt.Sprint(len(entry.Skills))
					if entry.RequestedRef != src.RequestedRef() {
						locked += " (ref changed)"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cell(src.Repo), cell(src.RequestedRef()), locked, skills)
			}
			_ = w.Flush()
		}

		if rows := curatedRows(p, lf); len(rows) > 0 {
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Skill\tSource\tState")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", cell(r.skill), cell(r.repo), r.state)
			}
			_ = w.Flush()
		}

		if len(local) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Local skills (%s):\n", p.cfg.LocalDir)
			for _, s := range local {
				fmt.Fprintf(out, "  %s\n", s.Name)
			}
		}
		return nil
	},
}

type curatedRow struct {
	skill string
	repo  string
	state string
}

// curatedRows checks every locked skill against the curated directory.
func curatedRows(p *project, lf *core.LockFile) []curatedRow {
	if lf == nil {
		return nil
	}
	curatedDir := filepath.Join(p.dir, p.cfg.CuratedDir)

	var rows []curatedRow
	for repo, entry := range lf.Sources {
		for name, locked := range entry.Skills {
			row := curatedRow{skill: name, repo: repo, state: "ok"}
			dir := filepath.Join(curatedDir, name)
			if _, err := os.Stat(dir); err != nil {
				row.state = "missing"
			} else if got, err := core.ComputeIntegrity(dir); err != nil || got != locked.Integrity {
				row.state = "modified"
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].skill < rows[j].skill })
	return rows
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
