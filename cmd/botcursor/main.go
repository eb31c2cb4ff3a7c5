// Command botcursor edits a git working tree from Telegram instructions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"botcursor/internal/config"
	"botcursor/internal/logging"
)

const version = "1.0.0"

// options holds the global flags and the configuration resolved from them.
type options struct {
	configPath string
	envPath    string
	verbose    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "botcursor",
		Short: "Telegram deployment agent for a git working tree",
		Long: `botcursor turns plain-language instructions sent over Telegram into file
changes in a local git working tree, then commits and pushes them on request.

Run without arguments to start the bot.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envPath); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if err := logging.Initialize(cfg.Logging.ToLogging(opts.verbose)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logging.BootDebug("Configuration loaded from %s", opts.configPath)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFile, "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newInstructCmd(opts),
		newStatusCmd(opts),
		newDiffCmd(opts),
		newDeployCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(stderr, "Configuration problems:")
			for _, p := range verr.Problems {
				fmt.Fprintf(stderr, "  - %s\n", p)
			}
			fmt.Fprintln(stderr, "\nSet the missing variables in the environment, .env or the YAML config.")
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func printBanner(w io.Writer, cfg *config.Config) {
	title := titleStyle.Render("botcursor " + version)
	info := subtleStyle.Render(fmt.Sprintf("provider %s · model %s · branch %s", cfg.LLM.Provider, cfg.LLM.Model, cfg.Git.Branch))
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, title, info))
}
