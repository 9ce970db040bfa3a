package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var (
	verbose     bool
	configPath  string
	baseURLFlag string
	tokenFlag   string
	sessionFlag string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// flushTimeout bounds the final push of debounced changes on exit
const flushTimeout = 5 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "synquot",
	Short: "Build quotations by chatting with the SynQuot assistant",
	Long: `A CLI client for the SynQuot quotation assistant.

Describe the services you want in plain language and the assistant keeps a
priced quotation up to date. Simple edits ("add Hosting quantity 2 price 500",
"change gst to 18", "remove hosting") apply instantly and are confirmed by the
backend; every change is synced in the background.

Features:
  • Interactive chat with instant local edits
  • Undo/redo of quotation changes
  • Background sync of quotation and conversation
  • Export in multiple formats (JSON, YAML, JSONL, Markdown)
  • A local reference backend for offline use (synquot serve)

Quick Start:
  synquot serve &                          # Start a local backend
  synquot chat                             # Start chatting
  synquot show --session <id>              # Print a session's quotation
  synquot export --format md --session <id>`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $XDG_CONFIG_HOME/synquot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token for the backend (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "Resume an existing session ID (overrides config)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// resolveConfig layers the command line flags over LoadConfig
func resolveConfig(cmd *cobra.Command) (internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = baseURLFlag
	}
	if flags.Changed("token") {
		cfg.Token = tokenFlag
	}
	if flags.Changed("session") {
		cfg.SessionID = sessionFlag
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &internal.ConfigError{Path: "flags", Err: err}
	}
	return cfg, nil
}

// openSession connects to the backend and loads the session. A load
// failure is returned next to a usable session so callers can decide
// whether to carry on with an empty quotation.
func openSession(ctx context.Context, cfg internal.Config) (*internal.HTTPClient, *internal.Session, error) {
	client, err := internal.NewHTTPClient(cfg.ClientOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	session := internal.NewSession(client, cfg.SessionOptions())

	loadErr := internal.ShowProgress(ctx, "Loading session", func() error {
		return session.Load(ctx)
	})
	return client, session, loadErr
}

// closeSession pushes pending changes and stops background sync
func closeSession(session *internal.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := session.Flush(ctx); err != nil {
		internal.LogWarn("Failed to sync pending changes: %v", err)
	}
	session.Close()
}
