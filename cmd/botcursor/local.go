package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"botcursor/internal/vcs"
)

func newInstructCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "instruct [instruction...]",
		Short:   "Run one instruction against the workspace without Telegram",
		Example: `  botcursor instruct "add a footer to index.html"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := buildStack(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report, ok := st.pipeline.Run(cmd.Context(), uuid.NewString(), strings.Join(args, " "), func(progress string) {
				fmt.Fprintln(out, progress)
				fmt.Fprintln(out)
			})
			fmt.Fprintln(out, report)
			if !ok {
				return errors.New("instruction failed")
			}
			return nil
		},
	}
}

// gitCommand builds a subcommand that runs one gateway operation and prints
// its message.
func gitCommand(opts *options, use, short string, args cobra.PositionalArgs, op func(cmd *cobra.Command, repo *vcs.Gateway, args []string) vcs.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, err := openRepo(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			res := op(cmd, repo, args)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.OK {
				return fmt.Errorf("%s failed", cmd.Name())
			}
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return gitCommand(opts, "status", "Show the git status of the workspace", cobra.NoArgs,
		func(cmd *cobra.Command, repo *vcs.Gateway, _ []string) vcs.Result {
			return repo.Status(cmd.Context())
		})
}

func newDiffCmd(opts *options) *cobra.Command {
	var lines int
	c := gitCommand(opts, "diff", "Show pending changes", cobra.NoArgs,
		func(cmd *cobra.Command, repo *vcs.Gateway, _ []string) vcs.Result {
			return repo.DetailedDiff(cmd.Context(), lines)
		})
	c.Flags().IntVarP(&lines, "lines", "n", 40, "maximum diff lines")
	return c
}

func newDeployCmd(opts *options) *cobra.Command {
	return gitCommand(opts, "deploy [message...]", "Stage, commit and push all changes", cobra.ArbitraryArgs,
		func(cmd *cobra.Command, repo *vcs.Gateway, args []string) vcs.Result {
			message := strings.Join(args, " ")
			if message == "" {
				message = vcs.DefaultCommitMessage
			}
			res := repo.Deploy(cmd.Context(), message)
			if res.OK && opts.cfg.Git.RepoURL != "" {
				if url := repo.LastCommitURL(cmd.Context(), opts.cfg.Git.RepoURL); url != "" {
					res.Message += "\n\nCommit: " + url
				}
			}
			return res
		})
}

func newResetCmd(opts *options) *cobra.Command {
	return gitCommand(opts, "reset", "Discard all uncommitted changes", cobra.NoArgs,
		func(cmd *cobra.Command, repo *vcs.Gateway, _ []string) vcs.Result {
			return repo.ResetChanges(cmd.Context())
		})
}
