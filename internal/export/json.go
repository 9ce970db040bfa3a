package export

import (
	"encoding/json"
	"io"

	"github.com/synquot/synquot-cli/internal"
)

// JSONExporter writes the whole snapshot as indented JSON
type JSONExporter struct{}

func (e *JSONExporter) Export(snapshot *internal.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func (e *JSONExporter) Extension() string {
	return "json"
}
