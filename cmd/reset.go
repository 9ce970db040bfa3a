package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var resetQuotationOnly bool

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a session's quotation and conversation",
	Long: `Reset a session: the quotation is emptied first, then the conversation
is replaced with the welcome message. With --quotation-only only the reset
endpoint is called; the backend still drops its stored conversation, but the
welcome message is not pushed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		ctx := context.Background()
		client, session, err := openSession(ctx, cfg)
		if session == nil {
			return err
		}
		defer session.Close()
		if err != nil {
			internal.LogWarn("Session did not load cleanly: %v", err)
		}

		reset := session.Reset
		if resetQuotationOnly {
			reset = session.ResetQuotation
		}
		if err := internal.ShowProgress(ctx, "Resetting session", func() error {
			return reset(ctx)
		}); err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Session %s reset", client.SessionID()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetQuotationOnly, "quotation-only", false, "Skip pushing the welcome message")
}
