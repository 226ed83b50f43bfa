package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/barysiuk/skillsource/internal/core"
	"github.com/barysiuk/skillsource/internal/core/gitremote"
	"github.com/barysiuk/skillsource/internal/core/system"
)

// project is the directory a command works on and its parsed config.
type project struct {
	dir string
	cfg *core.Config
}

// loadProject resolves --dir (or SKILLSOURCE_DIR, or cwd) and loads its config.
func loadProject() (*project, error) {
	dir := viper.GetString("dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}
	cfg, err := core.LoadConfig(abs)
	if err != nil {
		return nil, err
	}
	return &project{dir: abs, cfg: cfg}, nil
}

// addTokenFlag adds --token to a command that talks to remotes.
func addTokenFlag(cmd *cobra.Command) {
	cmd.Flags().String("token", "", "Access token for private repositories (default: $SKILLSOURCE_TOKEN, then $GITHUB_TOKEN)")
}

// resolveToken returns --token, else SKILLSOURCE_TOKEN, else GITHUB_TOKEN.
func resolveToken(cmd *cobra.Command) string {
	if cmd.Flags().Changed("token") {
		token, _ := cmd.Flags().GetString("token")
		return token
	}
	return viper.GetString("token")
}

// newRemote creates the git transport. Callers must Close it.
func newRemote(cmd *cobra.Command) (*gitremote.Remote, error) {
	var opts []gitremote.Option
	if token := resolveToken(cmd); token != "" {
		opts = append(opts, gitremote.WithToken(token))
	}
	return gitremote.New(opts...)
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resolveTargetSystems picks where skills are linked: --systems, else the
// config's "systems", else every system detected in the project.
func resolveTargetSystems(cmd *cobra.Command, p *project) ([]system.System, error) {
	flag, _ := cmd.Flags().GetString("systems")
	if names := splitList(flag); len(names) > 0 {
		return system.ByNames(names)
	}
	if len(p.cfg.Systems) > 0 {
		return system.ByNames(p.cfg.Systems)
	}
	return system.DetectInFolder(p.dir), nil
}

// addSystemsFlag adds --systems to a command.
func addSystemsFlag(cmd *cobra.Command) {
	cmd.Flags().String("systems", "", "Comma-separated system names (e.g. claude-code,cursor)")
}

// commandContext returns the command's context, which is cancelled on SIGINT.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ReportError prints err followed by the hints of every source error it
// carries, each hint once.
func ReportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}

	seen := map[string]bool{}
	var hints []string
	for _, e := range errs {
		var se *core.SourceError
		if !errors.As(e, &se) {
			continue
		}
		for _, h := range se.Hints {
			if !seen[h] {
				seen[h] = true
				hints = append(hints, h)
			}
		}
	}
	if len(hints) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Hints:")
	for _, h := range hints {
		fmt.Fprintf(w, "  - %s\n", h)
	}
}

// maxCellWidth bounds free-form table cells such as repository names and
// refs so the remaining columns stay aligned on a terminal.
const maxCellWidth = 40

// cell truncates s to maxCellWidth display columns.
func cell(s string) string {
	return ansi.Truncate(s, maxCellWidth, "…")
}
