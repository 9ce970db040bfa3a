package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/synquot/synquot-cli/internal"
	"github.com/synquot/synquot-cli/internal/devserver"
	"github.com/synquot/synquot-cli/testutil"
)

// seed stores q and a short conversation for sessionID
func seed(t *testing.T, store *devserver.Store, sessionID string, q internal.Quotation) {
	t.Helper()
	_, err := store.Update(context.Background(), sessionID, func(rec *devserver.Record) error {
		rec.Quotation = q
		rec.Conversation = []internal.ConversationEntry{
			{Role: "user", Content: "add things"},
			{Role: "assistant", Content: "Added."},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: Update() error = %v", err)
	}
}

func TestShowCommand(t *testing.T) {
	url, store, cfg := backend(t, devserver.Options{})
	seed(t, store, "sess-show", internal.SampleQuotation())

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "quotation only",
			args:    nil,
			want:    []string{"sess-show", "Web Development", "SEO Optimization", "82600.00"},
			notWant: []string{"add things"},
		},
		{
			name: "with messages",
			args: []string{"--messages"},
			want: []string{"Conversation", "add things", "Added."},
		},
		{
			name:    "limited messages",
			args:    []string{"--messages", "--limit", "1"},
			want:    []string{"Added."},
			notWant: []string{"add things"},
		},
		{
			name: "with features",
			args: []string{"--features"},
			want: []string{"Keyword research and optimization"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"show", "--config", cfg, "--base-url", url, "--session", "sess-show"}, tt.args...)
			out, err := executeCommand(t, args...)
			if err != nil {
				t.Fatalf("show error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestShowCommand_Unreachable(t *testing.T) {
	cfg := testutil.WriteConfigFile(t, t.TempDir(), "request_timeout: 1s\n")

	_, err := executeCommand(t, "show", "--config", cfg, "--base-url", "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("show error = nil, want a load failure")
	}
	if !strings.Contains(err.Error(), "failed to load session") {
		t.Errorf("error = %v, want it to mention the load failure", err)
	}
}

func TestExportCommand(t *testing.T) {
	url, store, cfg := backend(t, devserver.Options{})
	seed(t, store, "sess-exp", internal.SampleQuotation())

	tests := []struct {
		format string
		ext    string
		want   string
	}{
		{"json", "json", `"service_name": "Web Development"`},
		{"yaml", "yaml", "service_name: Web Development"},
		{"jsonl", "jsonl", `"content":"add things"`},
		{"md", "md", "| 1 | Web Development |"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			_, err := executeCommand(t, "export", "--config", cfg, "--base-url", url, "--session", "sess-exp",
				"--format", tt.format, "--out", dir)
			if err != nil {
				t.Fatalf("export error = %v", err)
			}

			data := testutil.ReadFile(t, filepath.Join(dir, "quotation_sess-exp."+tt.ext))
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("export = %s, want it to contain %s", data, tt.want)
			}
		})
	}
}

func TestExportCommand_Stdout(t *testing.T) {
	url, store, cfg := backend(t, devserver.Options{})
	seed(t, store, "sess-exp", internal.SampleQuotation())

	out, err := executeCommand(t, "export", "--config", cfg, "--base-url", url, "--session", "sess-exp",
		"--format", "json", "--out", "-")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}

	var snapshot internal.Snapshot
	testutil.JSONUnmarshal(t, []byte(out), &snapshot)
	if snapshot.SessionID != "sess-exp" {
		t.Errorf("SessionID = %q, want sess-exp", snapshot.SessionID)
	}
	if len(snapshot.Quotation.Services) != 2 {
		t.Errorf("len(Services) = %d, want 2", len(snapshot.Quotation.Services))
	}
	if len(snapshot.Messages) != 2 {
		t.Errorf("len(Messages) = %d, want 2", len(snapshot.Messages))
	}
}

func TestExportCommand_InvalidFormat(t *testing.T) {
	_, err := executeCommand(t, "export", "--format", "invalid", "--base-url", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("export error = %v, want unsupported format", err)
	}
}

func TestSyncCommand(t *testing.T) {
	url, store, cfg := backend(t, devserver.Options{})
	dir := t.TempDir()

	bare := testutil.WriteQuotationFile(t, dir, testutil.QuotationFixture(18, "Hosting", "SEO"))
	envelopePath := filepath.Join(dir, "envelope.json")
	envelope := `{"quotation": {"services": [{"service_name": "Logo Design", "quantity": "3", "price": 250}], "gst_percentage": 10}}`
	if err := os.WriteFile(envelopePath, []byte(envelope), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		file      string
		wantNames []string
		wantGrand float64
	}{
		{"bare quotation", bare, []string{"Hosting", "SEO"}, 2360},
		{"api envelope with legacy price", envelopePath, []string{"Logo Design"}, 825},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, "sync", "--config", cfg, "--base-url", url, "--session", "sess-sync", "--file", tt.file)
			if err != nil {
				t.Fatalf("sync error = %v", err)
			}
			if !strings.Contains(out, tt.wantNames[0]) {
				t.Errorf("output = %q, want the synced quotation", out)
			}

			rec, err := store.Load(context.Background(), "sess-sync")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(rec.Quotation.Services) != len(tt.wantNames) {
				t.Fatalf("stored services = %v, want %v", rec.Quotation.Services, tt.wantNames)
			}
			for i, name := range tt.wantNames {
				if rec.Quotation.Services[i].ServiceName != name {
					t.Errorf("Services[%d] = %q, want %q", i, rec.Quotation.Services[i].ServiceName, name)
				}
			}
			if rec.Quotation.GrandTotal != tt.wantGrand {
				t.Errorf("GrandTotal = %v, want %v", rec.Quotation.GrandTotal, tt.wantGrand)
			}
		})
	}
}

func TestSyncCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte("[1, 2"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing flag", []string{"sync"}},
		{"missing file", []string{"sync", "--file", filepath.Join(dir, "nope.json")}},
		{"invalid json", []string{"sync", "--file", badPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, tt.args...); err == nil {
				t.Error("sync error = nil, want error")
			}
		})
	}
}

func TestResetCommand(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantMessages int
	}{
		{"full reset", nil, 1},
		{"quotation only", []string{"--quotation-only"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, store, cfg := backend(t, devserver.Options{})
			seed(t, store, "sess-reset", internal.SampleQuotation())

			args := append([]string{"reset", "--config", cfg, "--base-url", url, "--session", "sess-reset"}, tt.args...)
			if _, err := executeCommand(t, args...); err != nil {
				t.Fatalf("reset error = %v", err)
			}

			rec, err := store.Load(context.Background(), "sess-reset")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(rec.Quotation.Services) != 0 {
				t.Errorf("stored services = %v, want none", rec.Quotation.Services)
			}
			if len(rec.Conversation) != tt.wantMessages {
				t.Errorf("stored conversation = %v, want %d entries", rec.Conversation, tt.wantMessages)
			}
		})
	}
}

func TestHealthcheckCommand(t *testing.T) {
	url, _, cfg := backend(t, devserver.Options{Token: "s3cret"})

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"healthy", []string{"--token", "s3cret", "--details"}, "Health check passed", false},
		{"bad token", []string{"--token", "wrong"}, "rejected the token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"healthcheck", "--config", cfg, "--base-url", url}, tt.args...)
			out, err := executeCommand(t, args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("healthcheck error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestHealthcheckCommand_Unreachable(t *testing.T) {
	cfg := testutil.WriteConfigFile(t, t.TempDir(), "request_timeout: 1s\n")

	out, err := executeCommand(t, "healthcheck", "--config", cfg, "--base-url", "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("healthcheck error = nil, want error")
	}
	if !strings.Contains(out, "Backend unreachable") {
		t.Errorf("output = %q, want an unreachable notice", out)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	for _, name := range []string{"addr", "db", "allow-origin"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("serve flag --%s not defined", name)
		}
	}
}
