package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barysiuk/skillsource/internal/core"
	"github.com/barysiuk/skillsource/internal/core/system"
	"github.com/barysiuk/skillsource/internal/tui"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the skills declared in skillsource.jsonc",
	Long: `Resolve every declared source, fetch the skills it provides and pin the
result in skillsource.lock.json.

Sources already in the lockfile keep their locked commit unless their
requested ref changed or --update is given. Skills found in the local skill
directory always win; otherwise the first declared source providing a skill
wins.

  --update   re-resolve every ref against the remote
  --frozen   install exactly what the lockfile pins, never write it (CI)

After a successful install, every effective skill is linked into the skill
directories of the selected AI tools (--systems, config "systems", or the
tools detected in the project).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}

		update, _ := cmd.Flags().GetBool("update")
		frozen, _ := cmd.Flags().GetBool("frozen")
		noProgress, _ := cmd.Flags().GetBool("no-progress")
		noLink, _ := cmd.Flags().GetBool("no-link")
		if update && frozen {
			return fmt.Errorf("--update and --frozen cannot be used together")
		}

		var targets []system.System
		if !noLink {
			// Fail on a bad --systems value before touching the network.
			if targets, err = resolveTargetSystems(cmd, p); err != nil {
				return err
			}
		}

		remote, err := newRemote(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = remote.Close() }()

		opts := core.InstallOptions{Update: update, Frozen: frozen}
		install := func(ctx context.Context, observer core.Observer) (*core.InstallResult, error) {
			var instOpts []core.InstallerOption
			if observer != nil {
				instOpts = append(instOpts, core.WithObserver(observer))
			}
			return core.NewInstaller(remote, p.dir, p.cfg, instOpts...).Install(ctx, opts)
		}

		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)
		var result *core.InstallResult
		if !noProgress && isTerminal(out) {
			repos := make([]string, 0, len(p.cfg.Sources))
			if sources, err := p.cfg.ParsedSources(); err == nil {
				for _, s := range sources {
					repos = append(repos, s.Repo)
				}
			}
			result, err = tui.RunProgress(ctx, os.Stdin, out, repos, install)
		} else {
			result, err = install(ctx, nil)
		}
		if err != nil {
			return err
		}

		printInstallSummary(out, result)

		if noLink || len(targets) == 0 {
			return nil
		}
		skills, err := core.EffectiveSkills(p.dir, p.cfg, result.LockFile)
		if err != nil {
			return err
		}
		links, err := system.Distribute(p.dir, targets, skills)
		printLinkSummary(out, targets, links)
		return err
	},
}

func init() {
	installCmd.Flags().Bool("update", false, "Re-resolve every source's ref, ignoring locked commits")
	installCmd.Flags().Bool("frozen", false, "Install exactly the locked commits; fail if the lockfile is out of sync")
	installCmd.Flags().Bool("no-progress", false, "Disable the interactive progress view")
	installCmd.Flags().Bool("no-link", false, "Do not link skills into AI tool directories")
	addTokenFlag(installCmd)
	addSystemsFlag(installCmd)
	rootCmd.AddCommand(installCmd)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printInstallSummary(w io.Writer, r *core.InstallResult) {
	queried := make(map[string]bool, len(r.Queried))
	for _, repo := range r.Queried {
		queried[repo] = true
	}
	for _, rs := range r.Resolved {
		origin := "locked"
		if queried[rs.Repo] {
			origin = "resolved"
		}
		fmt.Fprintf(w, "Source: %s@%s -> %s (%s)\n", rs.Repo, rs.RequestedRef(), core.TruncateCommit(rs.Commit), origin)
	}
	for _, s := range r.Fetched {
		fmt.Fprintf(w, "Fetched: %s from %s\n", s.Name, s.Source.Repo)
	}
	for _, s := range r.Reused {
		fmt.Fprintf(w, "Up to date: %s from %s\n", s.Name, s.Source.Repo)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "Skipped: %s from %s (%s)\n", s.Skill, s.Source, s.Reason)
	}
	for _, name := range r.Pruned {
		fmt.Fprintf(w, "Removed: %s\n", name)
	}

	switch {
	case r.LockWritten:
		fmt.Fprintf(w, "Wrote %s\n", core.LockFileName)
	case r.LockFile != nil:
		fmt.Fprintf(w, "Verified against %s\n", core.LockFileName)
	}
}

func printLinkSummary(w io.Writer, targets []system.System, links []*system.LinkResult) {
	byName := make(map[string]system.System, len(targets))
	for _, t := range targets {
		byName[t.Name()] = t
	}
	for _, l := range links {
		s := byName[l.System]
		total := len(l.Linked) + len(l.Copied) + len(l.Unchanged)
		fmt.Fprintf(w, "Linked %d skill(s) into %s (%s)\n", total, s.DisplayName(), s.SkillsDir())
		if len(l.Conflicts) > 0 {
			fmt.Fprintf(w, "  Left alone (not managed by skillsource): %s\n", strings.Join(l.Conflicts, ", "))
		}
	}
}
