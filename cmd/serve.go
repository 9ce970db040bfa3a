package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
	"github.com/synquot/synquot-cli/internal/devserver"
)

var (
	serveAddr    string
	serveDB      string
	serveOrigins []string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local reference backend",
	Long: `Run a local quotation backend implementing the chat, quotation and
conversation endpoints. Sessions are kept in a SQLite database keyed by the
sessionid cookie. The assistant applies the same edit rules as the client,
so replies are deterministic.

The bearer token from --token (or SYNQUOT_TOKEN) is required on every
request when set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := os.Getenv(internal.EnvPrefix + "TOKEN")
		if cmd.Flags().Changed("token") {
			token = tokenFlag
		}

		store, err := devserver.OpenStore(serveDB)
		if err != nil {
			return err
		}
		defer store.Close()

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := devserver.New(store, devserver.Options{
			Token:        token,
			AllowOrigins: serveOrigins,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if n, err := store.Count(ctx); err == nil {
			internal.LogInfo("Loaded %d stored session(s) from %s", n, serveDB)
		}
		internal.PrintInfo(fmt.Sprintf("Serving on %s (Ctrl+C to stop)", serveAddr))
		if err := srv.ListenAndServe(ctx, serveAddr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		internal.LogInfo("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8000", "Listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", "synquot.db", "SQLite database file (:memory: for a throwaway store)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "Browser origin allowed by CORS (repeatable)")
}
