package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/synquot/synquot-cli/internal"
)

// MarkdownExporter renders the quotation as a table followed by the transcript
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(snapshot *internal.Snapshot, w io.Writer) error {
	var b strings.Builder

	b.WriteString("# Quotation\n\n")
	if snapshot.SessionID != "" {
		fmt.Fprintf(&b, "**Session:** %s  \n", snapshot.SessionID)
	}
	if !snapshot.ExportedAt.IsZero() {
		fmt.Fprintf(&b, "**Exported:** %s  \n", snapshot.ExportedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "**Services:** %d\n\n", len(snapshot.Quotation.Services))

	writeQuotationTable(&b, snapshot.Quotation)

	b.WriteString("---\n\n## Conversation\n\n")
	for i, msg := range snapshot.Messages {
		label := "Assistant"
		if msg.Role == internal.RoleUser {
			label = "User"
		}
		fmt.Fprintf(&b, "**%s:**\n\n%s\n\n", label, escapeMarkdown(msg.Content))
		if i < len(snapshot.Messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeQuotationTable(b *strings.Builder, q internal.Quotation) {
	if len(q.Services) == 0 {
		b.WriteString("_No services._\n\n")
		return
	}

	b.WriteString("| # | Service | Qty | Unit Price | Amount |\n")
	b.WriteString("|---|---------|----:|-----------:|-------:|\n")
	for i, s := range q.Services {
		fmt.Fprintf(b, "| %d | %s | %v | %s | %s |\n",
			i+1, escapeCell(s.ServiceName), s.Quantity,
			internal.FormatAmount(internal.ResolvePrice(s)), internal.FormatAmount(s.Amount))
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "- **Subtotal:** %s\n", internal.FormatAmount(q.Subtotal))
	fmt.Fprintf(b, "- **GST (%v%%):** %s\n", q.GSTPercentage, internal.FormatAmount(q.GSTAmount))
	fmt.Fprintf(b, "- **Grand Total:** %s\n\n", internal.FormatAmount(q.GrandTotal))

	for _, s := range q.Services {
		if len(s.KeyFeatures) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", s.ServiceName)
		for _, f := range s.KeyFeatures {
			fmt.Fprintf(b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
}

func escapeCell(text string) string {
	return strings.ReplaceAll(text, "|", "\\|")
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
