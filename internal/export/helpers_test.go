package export

import (
	"time"

	"github.com/synquot/synquot-cli/internal"
)

func sampleSnapshot() *internal.Snapshot {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &internal.Snapshot{
		SessionID: "sess-42",
		Quotation: internal.SampleQuotation(),
		Messages: []internal.ChatMessage{
			{ID: "msg-1", Role: internal.RoleUser, Content: "add web development quantity 1 price 50000", Timestamp: ts},
			{ID: "msg-2", Role: internal.RoleAssistant, Content: "Added **Web Development**.", Timestamp: ts.Add(time.Second)},
		},
		ExportedAt: ts.Add(time.Minute),
	}
}
