package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var syncFile string

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replace a session's quotation with one read from a file",
	Long: `Read a quotation from a JSON file and push it to the backend.

The file may hold the quotation itself or an object with a "quotation" field,
as returned by the API. Prices may use any of unit_price, price or unit_rate.
Services with empty names are dropped, and the totals are recalculated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readQuotationFile(syncFile)
		if err != nil {
			return err
		}

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

		q = internal.RecalculateTotals(internal.NormalizeQuotation(&q))
		if err := internal.ShowProgress(ctx, "Syncing quotation", func() error {
			return session.SyncQuotation(ctx, q)
		}); err != nil {
			return fmt.Errorf("failed to sync quotation: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), internal.RenderQuotation(*session.Quotation(), false))
		internal.PrintSuccess(fmt.Sprintf("Quotation synced to session %s", client.SessionID()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVarP(&syncFile, "file", "f", "", "JSON file holding the quotation")
	_ = syncCmd.MarkFlagRequired("file")
}

// readQuotationFile decodes a bare quotation or a {"quotation": ...} envelope
func readQuotationFile(path string) (internal.Quotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return internal.Quotation{}, fmt.Errorf("failed to read quotation file: %w", err)
	}

	var envelope struct {
		Quotation *internal.Quotation `json:"quotation"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return internal.Quotation{}, fmt.Errorf("invalid quotation file %s: %w", path, err)
	}
	if envelope.Quotation != nil {
		return *envelope.Quotation, nil
	}

	var q internal.Quotation
	if err := json.Unmarshal(data, &q); err != nil {
		return internal.Quotation{}, fmt.Errorf("invalid quotation file %s: %w", path, err)
	}
	return q, nil
}
