package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var (
	showFeatures bool
	showMessages bool
	limit        int
)

var (
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the quotation of a session",
	Long: `Display the current quotation of a session, optionally followed by the
conversation that produced it.

Without --session a new session is started, which is rarely useful; pass the
session ID printed by 'synquot chat'.`,
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
			return fmt.Errorf("failed to load session: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sessionHeaderStyle.Render("Quotation"))
		fmt.Fprintln(out, sessionMetaStyle.Render("Session: "+client.SessionID()))
		fmt.Fprintln(out)
		fmt.Fprintln(out, internal.RenderQuotation(*session.Quotation(), showFeatures))

		if showMessages {
			messages := session.Messages()
			if limit > 0 && len(messages) > limit {
				messages = messages[len(messages)-limit:]
			}
			fmt.Fprintln(out, sessionHeaderStyle.Render("Conversation"))
			for _, m := range messages {
				fmt.Fprintln(out, internal.RenderMessage(m))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showFeatures, "features", false, "Show key features under each service")
	showCmd.Flags().BoolVarP(&showMessages, "messages", "m", false, "Also print the conversation")
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last N messages")
}
