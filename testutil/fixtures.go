package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/synquot/synquot-cli/internal"
)

// QuotationFixture builds a priced quotation with one unit of each named
// service at 1000, totals recalculated with the given GST percentage.
func QuotationFixture(gst float64, names ...string) internal.Quotation {
	q := internal.EmptyQuotation()
	q.GSTPercentage = gst
	for _, name := range names {
		q.Services = append(q.Services, internal.Service{
			ServiceName: name,
			Quantity:    1,
			UnitPrice:   1000,
			KeyFeatures: internal.GenerateKeyFeatures(name),
		})
	}
	return internal.RecalculateTotals(q)
}

// WriteQuotationFile writes q as JSON into dir and returns the path
func WriteQuotationFile(t *testing.T, dir string, q internal.Quotation) string {
	t.Helper()
	path := filepath.Join(dir, "quotation.json")
	if err := os.WriteFile(path, JSONMarshal(t, q), 0644); err != nil {
		t.Fatalf("Failed to write quotation fixture: %v", err)
	}
	return path
}

// WriteConfigFile writes a YAML config into dir and returns the path
func WriteConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config fixture: %v", err)
	}
	return path
}
