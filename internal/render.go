package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62")).
				Padding(0, 1)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	tableNumberStyle = tableCellStyle.Align(lipgloss.Right)

	featureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	totalLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	grandTotalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	userRoleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	assistantRoleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
)

// FormatAmount renders a money value with two decimals
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatQuantity(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// RenderQuotation renders the quotation as a table followed by its totals
func RenderQuotation(q Quotation, showFeatures bool) string {
	if len(q.Services) == 0 {
		return featureStyle.Render("No services in the quotation yet.")
	}

	rows := make([][]string, 0, len(q.Services))
	for i, s := range q.Services {
		name := s.ServiceName
		if showFeatures && len(s.KeyFeatures) > 0 {
			name += "\n" + featureStyle.Render("• "+strings.Join(s.KeyFeatures, "\n• "))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			name,
			formatQuantity(s.Quantity),
			FormatAmount(ResolvePrice(s)),
			FormatAmount(s.Amount),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("#", "Service", "Qty", "Unit Price", "Amount").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 1:
				return tableCellStyle
			default:
				return tableNumberStyle
			}
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(totalLine("Subtotal", FormatAmount(q.Subtotal)))
	gstLabel := fmt.Sprintf("GST (%s%%)", decimal.NewFromFloat(q.GSTPercentage).String())
	b.WriteString(totalLine(gstLabel, FormatAmount(q.GSTAmount)))
	b.WriteString(fmt.Sprintf("%s %s\n", totalLabelStyle.Render(fmt.Sprintf("%-14s", "Grand Total")), grandTotalStyle.Render(FormatAmount(q.GrandTotal))))
	return b.String()
}

func totalLine(label, value string) string {
	return fmt.Sprintf("%s %s\n", totalLabelStyle.Render(fmt.Sprintf("%-14s", label)), value)
}

// RenderMessage renders one chat message with a role label
func RenderMessage(m ChatMessage) string {
	label := assistantRoleStyle.Render("SynQuot")
	if m.Role == RoleUser {
		label = userRoleStyle.Render("You")
	}
	stamp := ""
	if !m.Timestamp.IsZero() {
		stamp = " " + timeStyle.Render(m.Timestamp.Format("15:04"))
	}
	return fmt.Sprintf("%s%s\n%s\n", label, stamp, m.Content)
}

// RenderHistory lists undo entries, marking the one under the cursor
func RenderHistory(entries []HistoryEntry[*Quotation], cursor int) string {
	var b strings.Builder
	for i, e := range entries {
		marker := "  "
		if i == cursor {
			marker = cursorStyle.Render("> ")
		}
		action := e.ActionName
		if action == "" {
			action = "Initial"
		}
		total := "-"
		services := 0
		if e.State != nil {
			total = FormatAmount(e.State.GrandTotal)
			services = len(e.State.Services)
		}
		fmt.Fprintf(&b, "%s%2d  %-22s %s  services=%d total=%s\n",
			marker, i, action, timeStyle.Render(e.Timestamp.Format("15:04:05")), services, total)
	}
	return b.String()
}
