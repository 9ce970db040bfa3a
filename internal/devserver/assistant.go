package devserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/synquot/synquot-cli/internal"
)

// Assistant produces the reply and the updated quotation for a chat message
type Assistant interface {
	Reply(ctx context.Context, message string, current internal.Quotation, history []internal.ConversationEntry) (string, internal.Quotation, error)
}

// RuleAssistant answers with the same edit rules the client applies
// optimistically, so replies are deterministic.
type RuleAssistant struct{}

// Reply implements Assistant
func (RuleAssistant) Reply(ctx context.Context, message string, current internal.Quotation, history []internal.ConversationEntry) (string, internal.Quotation, error) {
	if err := ctx.Err(); err != nil {
		return "", current, err
	}

	result := internal.TryInstantUpdate(message, &current)
	if !result.Updated {
		return fallbackReply(message), current, nil
	}

	updated := *result.Quotation
	return fmt.Sprintf("I've updated the quotation. It now has %d service(s) with a grand total of ₹%s.",
		len(updated.Services), internal.FormatAmount(updated.GrandTotal)), updated, nil
}

func fallbackReply(message string) string {
	lower := strings.ToLower(message)
	reply := "I couldn't apply that change. "
	switch {
	case strings.Contains(lower, "remove") || strings.Contains(lower, "delete"):
		return reply + "Please specify the service name to remove, for example: 'Remove [service name]'"
	case strings.Contains(lower, "add"):
		return reply + "Please specify both quantity and price, for example: 'Add [service] with quantity 5 and price 10000'"
	case strings.Contains(lower, "change") && strings.Contains(lower, "name"):
		return reply + "Please try rephrasing your request, for example: 'Change [old name] to [new name]'"
	default:
		return reply + "Please try again or rephrase your request."
	}
}
