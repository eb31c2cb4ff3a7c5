package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"botcursor/internal/bot"
	"botcursor/internal/completion"
	"botcursor/internal/config"
	"botcursor/internal/logging"
	"botcursor/internal/ops"
	"botcursor/internal/session"
	"botcursor/internal/vcs"
	"botcursor/internal/workspace"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Telegram bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✅ Configuration is valid")
			for _, line := range opts.cfg.Summary() {
				fmt.Fprintln(out, "  "+line)
			}
			return nil
		},
	}
}

// stack is everything an instruction needs, built once from configuration.
type stack struct {
	ws       *workspace.Workspace
	repo     *vcs.Gateway
	pipeline *bot.Pipeline
}

// openRepo opens the workspace and its git work tree.
func openRepo(ctx context.Context, cfg *config.Config) (*workspace.Workspace, *vcs.Gateway, error) {
	ws, err := workspace.New(cfg.Workspace.Path, cfg.Workspace.Ignore, cfg.Workspace.Protected)
	if err != nil {
		return nil, nil, err
	}
	repo, err := vcs.Open(ctx, ws.Root(), cfg.Git.Branch, cfg.Git.Remote)
	if err != nil {
		return nil, nil, err
	}
	repo.SetAuthor(cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	return ws, repo, nil
}

func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	ws, repo, err := openRepo(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := completion.NewBackend(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	client := completion.NewClient(backend, ws, completion.Options{
		Params: completion.Params{
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			TopP:            cfg.LLM.TopP,
		},
		MaxFileChars: cfg.Workspace.MaxFileChars,
		MaxMainFiles: cfg.Workspace.MaxMainFiles,
	})
	logging.Boot("Using %s backend with model %s", backend.Name(), backend.GetModel())

	return &stack{
		ws:       ws,
		repo:     repo,
		pipeline: bot.NewPipeline(client, ops.NewApplier(ws), repo),
	}, nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg := opts.cfg
	printBanner(cmd.OutOrStdout(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	gate := session.NewGate(cfg.Telegram.AllowedUserID, cfg.Telegram.AccessPIN, cfg.GetPINTTL())

	api, err := bot.NewTelegramAPI(cfg.Telegram.Token, cfg.Telegram.Proxy)
	if err != nil {
		return err
	}
	transport := bot.NewTelegramTransport(api)
	if err := transport.SetCommands(gate.SecretConfigured()); err != nil {
		logging.BootError("Failed to publish the command menu: %v", err)
	}

	router := bot.NewRouter(bot.Config{
		Transport: transport,
		Gate:      gate,
		Pipeline:  st.pipeline,
		Repo:      st.repo,
		RepoURL:   cfg.Git.RepoURL,
	})

	logging.Boot("Bot started for user %d in %s", cfg.Telegram.AllowedUserID, st.ws.Root())
	fmt.Fprintln(cmd.OutOrStdout(), "🤖 Bot is running. Press Ctrl+C to stop.")
	if err := router.Serve(ctx, bot.NewTelegramSource(api)); err != nil {
		return err
	}
	logging.Boot("Bot stopped")
	return nil
}
