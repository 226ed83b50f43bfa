package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/barysiuk/skillsource/internal/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "skillsource",
	Short: "Install, lock and resolve agent skills from git sources",
	Long: `skillsource installs AI agent skills declared in skillsource.jsonc.

Each source is a git repository (owner/repo[@ref][:path]). Resolved commits
and content digests are pinned in skillsource.lock.json so every machine
installs exactly the same skills. Skills authored in the project always win
over fetched ones.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.SetLogLevel(viper.GetString("log-level")); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger.SetLogFormat(viper.GetString("log-format"))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "skillsource %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	viper.SetEnvPrefix("SKILLSOURCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// An explicit SKILLSOURCE_TOKEN wins over the token GitHub tooling exports.
	_ = viper.BindEnv("token", "SKILLSOURCE_TOKEN", "GITHUB_TOKEN")

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringP("dir", "d", "", "Project directory (default: current directory)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so an interrupted install leaves the project untouched.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
