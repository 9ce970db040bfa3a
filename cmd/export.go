package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
	"github.com/synquot/synquot-cli/internal/export"
)

var (
	format    string
	outputDir string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a session to file",
	Long: `Export the quotation and conversation of a session to one of the
supported formats (jsonl, md, yaml, json).

Use --out - to write to standard output instead of a file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Fail on a bad format before touching the network
		exporter, err := export.NewExporter(format)
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

		snapshot := session.Snapshot(client.SessionID())
		if outputDir == "-" {
			if err := exporter.Export(snapshot, cmd.OutOrStdout()); err != nil {
				return &internal.ExportError{Format: format, Path: "stdout", Err: err}
			}
			return nil
		}

		var path string
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting session to %s", outputDir), func() error {
			var exportErr error
			path, exportErr = writeExport(snapshot, format, outputDir)
			return exportErr
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %s", path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory, or - for stdout")
}

// writeExport writes snapshot into dir as quotation_<session>.<ext> and
// returns the file path.
func writeExport(snapshot *internal.Snapshot, format, dir string) (string, error) {
	exporter, err := export.NewExporter(format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &internal.ExportError{Format: format, Path: dir, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	name := snapshot.SessionID
	if name == "" {
		name = "session"
	}
	path := filepath.Join(dir, fmt.Sprintf("quotation_%s.%s", name, exporter.Extension()))

	file, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := exporter.Export(snapshot, file); err != nil {
		_ = file.Close()
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	internal.LogDebug("exported session %s to %s", snapshot.SessionID, path)
	return path, nil
}
