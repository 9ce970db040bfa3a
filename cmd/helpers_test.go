package cmd

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal/devserver"
	"github.com/synquot/synquot-cli/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// resetFlags puts the named flags of c back to their defaults so one test's
// arguments don't leak into the next Execute.
func resetFlags(c *cobra.Command, names ...string) {
	for _, name := range names {
		f := c.Flags().Lookup(name)
		if f == nil {
			f = c.PersistentFlags().Lookup(name)
		}
		if f == nil {
			continue
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
}

// executeCommand runs the root command with args and returns its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd, "verbose", "config", "base-url", "token", "session", "version", "help")
	resetFlags(showCmd, "features", "messages", "limit")
	resetFlags(exportCmd, "format", "out")
	resetFlags(syncCmd, "file")
	resetFlags(resetCmd, "quotation-only")
	resetFlags(healthcheckCmd, "details", "timeout")
	resetFlags(chatCmd, "out")

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

// backend starts a reference server and returns its URL, its store and a
// config file that keeps debounced syncs from firing during a test.
func backend(t *testing.T, opts devserver.Options) (string, *devserver.Store, string) {
	t.Helper()
	store, err := devserver.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ts := httptest.NewServer(devserver.New(store, opts).Handler())
	t.Cleanup(ts.Close)

	cfg := testutil.WriteConfigFile(t, t.TempDir(), "sync_delay: 1h\nrequest_timeout: 5s\n")
	return ts.URL, store, cfg
}
