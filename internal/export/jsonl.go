package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/synquot/synquot-cli/internal"
)

// JSONLExporter writes one conversation message per line
type JSONLExporter struct{}

type jsonlLine struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Export writes the transcript. The quotation is not part of this format.
func (e *JSONLExporter) Export(snapshot *internal.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, msg := range snapshot.Messages {
		line := jsonlLine{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
