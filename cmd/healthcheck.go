package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var (
	healthcheckVerbose bool
	healthcheckTimeout time.Duration
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that synquot can reach the backend",
	Long: `Check the health of synquot by verifying:
  • Configuration loading
  • Backend reachability and authentication
  • Quotation and conversation access for the session

This command is useful for debugging connection issues, especially in CI/CD environments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 SynQuot Health Check"))
		fmt.Fprintln(out)

		// Step 1: Configuration
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		cfg, err := resolveConfig(cmd)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Base URL: %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "   Token: %s\n", presence(cfg.Token))
			fmt.Fprintf(out, "   Session: %s\n", presence(cfg.SessionID))
			fmt.Fprintf(out, "   Sync delay: %s, sync timeout: %s\n", cfg.SyncDelay, cfg.SyncTimeout)
		}
		fmt.Fprintln(out)

		client, err := internal.NewHTTPClient(cfg.ClientOptions())
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Invalid client settings:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
		defer cancel()

		// Step 2: Reachability
		fmt.Fprintln(out, infoStyle.Render("Step 2: Contacting backend..."))
		start := time.Now()
		if err := client.Ping(ctx); err != nil {
			var reqErr *internal.RequestError
			switch {
			case errors.As(err, &reqErr) && reqErr.Status == 401:
				fmt.Fprintln(out, errorStyle.Render("❌ Backend rejected the token"))
			case errors.As(err, &reqErr) && reqErr.Status != 0:
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Backend answered HTTP %d", reqErr.Status)))
			default:
				fmt.Fprintln(out, errorStyle.Render("❌ Backend unreachable"))
			}
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Error: %v\n", err)
			}
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Backend reachable (%s)", time.Since(start).Round(time.Millisecond))))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Session: %s\n", client.SessionID())
		}
		fmt.Fprintln(out)

		// Step 3: Session data
		fmt.Fprintln(out, infoStyle.Render("Step 3: Loading session data..."))
		q, qErr := client.GetQuotation(ctx)
		entries, cErr := client.GetConversationHistory(ctx)
		if qErr != nil || cErr != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Session data is only partly available"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Quotation: %v\n   Conversation: %v\n", qErr, cErr)
			}
		} else {
			services := 0
			if q != nil {
				services = len(q.Services)
			}
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Quotation has %d service(s), conversation has %d message(s)", services, len(entries))))
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if qErr != nil || cErr != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Backend reachable but session data failed to load"))
			return fmt.Errorf("health check failed: %w", errors.Join(qErr, cErr))
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "details", "d", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 10*time.Second, "Overall time limit for the check")
}

func presence(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
