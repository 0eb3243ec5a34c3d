package classifier

import (
	"fmt"
	"strings"

	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/internal/registry"
	"github.com/ryanmello/lilli/pkg/models"
)

const systemPrompt = `You route customer requests for a flower shop to specialized handlers.

Pick the ONE handler best suited to answer as primary_handler. Add
secondary_handlers only when the answer genuinely needs their work too
(for example a wedding order that needs a design, a stock check, and a
delivery quote). Use only handler names from the list you are given.

Extract entities such as flower_type, color, quantity, occasion, date
(YYYY-MM-DD), zip_code, and customer_name when present. Use singular
lowercase values for flower types ("rose", not "Roses").

If a follow-up only makes sense with the recent conversation, use it to
fill in what the customer is referring to. When a handler would work
better on a narrower question, put a rewritten question for it in
sub_queries.

Set confidence near 1 when the request clearly matches one handler, and
below 0.5 when it is ambiguous.`

// BuildPrompt renders the user prompt for one routing call. History is
// limited to the last historyTurns turns, and each turn contributes only its
// request text and primary handler.
func BuildPrompt(requestText string, handlers []registry.Description, state *conversation.State, historyTurns int) string {
	var b strings.Builder

	b.WriteString("Available handlers:\n")
	for _, h := range handlers {
		fmt.Fprintf(&b, "- %s: %s\n", h.Name, strings.TrimSpace(h.Description))
	}

	if state != nil {
		if turns := state.RecentTurns(historyTurns); len(turns) > 0 {
			b.WriteString("\nRecent conversation (oldest first):\n")
			for i, t := range turns {
				fmt.Fprintf(&b, "%d. %q -> %s\n", i+1, t.RequestText, t.Decision.PrimaryHandler)
			}
		}
		if attrs := state.Attributes(); len(attrs) > 0 {
			b.WriteString("\nKnown facts:\n")
			for _, k := range models.SortedKeys(attrs) {
				fmt.Fprintf(&b, "- %s: %s\n", k, attrs[k])
			}
		}
	}

	b.WriteString("\nRequest:\n")
	b.WriteString(requestText)
	b.WriteString("\n")
	return b.String()
}

// RequestFromPrompt recovers the request text from a prompt made by BuildPrompt.
func RequestFromPrompt(prompt string) string {
	const marker = "\nRequest:\n"
	i := strings.LastIndex(prompt, marker)
	if i < 0 {
		return strings.TrimSpace(prompt)
	}
	return strings.TrimSpace(prompt[i+len(marker):])
}
