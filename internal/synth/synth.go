// Package synth composes handler outputs into the reply for a turn.
package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ryanmello/lilli/pkg/models"
)

// ErrNoOutputs is returned when no handler completed, so there is nothing to
// compose.
var ErrNoOutputs = errors.New("no handler produced output")

// PartialBanner opens every partial reply.
const PartialBanner = "I couldn't fully process that — here's what I found."

// textFields are rendered as a section's body and never reconciled.
var textFields = []string{"message", "summary"}

// Synthesize composes the reply for a turn. plan is the dependency-ordered
// list of handlers that were meant to run; outputs are the validated
// outputs in execution order. Handlers in plan with no output are reported
// as missing and the reply is marked partial.
func Synthesize(decision models.RoutingDecision, plan []string, outputs []models.HandlerOutput) (models.FinalResponse, error) {
	if len(outputs) == 0 {
		return models.FinalResponse{}, ErrNoOutputs
	}

	resp := models.FinalResponse{
		Outputs: models.CloneOutputs(outputs),
		Missing: missing(plan, outputs),
	}
	resp.Partial = len(resp.Missing) > 0
	resp.Merged, resp.Conflicts = Reconcile(decision.PrimaryHandler, resp.Outputs)
	resp.Message = compose(outputs, resp.Partial, resp.Missing, resp.Conflicts)
	return resp, nil
}

// Reconcile merges the structured fields of all outputs. When handlers
// disagree on a field, the primary handler's value wins; without one from
// the primary, the earliest handler in execution order wins. Every
// disagreement is returned as a Conflict, ordered by first appearance.
func Reconcile(primary string, outputs []models.HandlerOutput) (map[string]any, []models.Conflict) {
	type candidate struct {
		handler string
		value   any
	}
	var fieldOrder []string
	byField := make(map[string][]candidate)
	for _, o := range outputs {
		for _, field := range models.SortedKeys(o.Data) {
			if isTextField(field) {
				continue
			}
			if _, seen := byField[field]; !seen {
				fieldOrder = append(fieldOrder, field)
			}
			byField[field] = append(byField[field], candidate{handler: o.Handler, value: o.Data[field]})
		}
	}
	if len(fieldOrder) == 0 {
		return nil, nil
	}

	merged := make(map[string]any, len(fieldOrder))
	var conflicts []models.Conflict
	for _, field := range fieldOrder {
		cands := byField[field]
		winner := cands[0]
		for _, c := range cands {
			if c.handler == primary {
				winner = c
				break
			}
		}
		merged[field] = winner.value

		var discarded map[string]any
		for _, c := range cands {
			if c.handler == winner.handler || reflect.DeepEqual(c.value, winner.value) {
				continue
			}
			if discarded == nil {
				discarded = make(map[string]any)
			}
			discarded[c.handler] = c.value
		}
		if discarded != nil {
			conflicts = append(conflicts, models.Conflict{
				Field:      field,
				Chosen:     winner.value,
				ChosenFrom: winner.handler,
				Discarded:  discarded,
			})
		}
	}
	return merged, conflicts
}

func compose(outputs []models.HandlerOutput, partial bool, missing []string, conflicts []models.Conflict) string {
	var b strings.Builder
	if partial {
		b.WriteString(PartialBanner)
		b.WriteString("\n\n")
	}

	if len(outputs) == 1 && !partial {
		b.WriteString(body(outputs[0].Data))
	} else {
		for i, o := range outputs {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(Title(o.Handler))
			b.WriteString(":\n")
			b.WriteString(body(o.Data))
		}
	}

	for _, c := range conflicts {
		others := models.SortedKeys(c.Discarded)
		fmt.Fprintf(&b, "\n\nNote: %s and %s gave different %s; using %s's value (%s).",
			Title(c.ChosenFrom), joinTitles(others), strings.ReplaceAll(c.Field, "_", " "),
			Title(c.ChosenFrom), FormatValue(c.Chosen))
	}

	if partial {
		fmt.Fprintf(&b, "\n\nNot completed: %s.", joinTitles(missing))
	}
	return b.String()
}

// body renders a section: the text field when present, otherwise the
// structured fields one per line.
func body(data map[string]any) string {
	for _, field := range textFields {
		if s, ok := data[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	var lines []string
	for _, k := range models.SortedKeys(data) {
		lines = append(lines, fmt.Sprintf("- %s: %s", strings.ReplaceAll(k, "_", " "), FormatValue(data[k])))
	}
	if len(lines) == 0 {
		return "(no details)"
	}
	return strings.Join(lines, "\n")
}

// Title turns a handler name into a section title.
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FormatValue renders a decoded JSON value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "yes"
		}
		return "no"
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

func joinTitles(names []string) string {
	titles := make([]string, len(names))
	for i, n := range names {
		titles[i] = Title(n)
	}
	switch len(titles) {
	case 0:
		return ""
	case 1:
		return titles[0]
	default:
		return strings.Join(titles[:len(titles)-1], ", ") + " and " + titles[len(titles)-1]
	}
}

func missing(plan []string, outputs []models.HandlerOutput) []string {
	done := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		done[o.Handler] = true
	}
	var out []string
	for _, name := range plan {
		if !done[name] {
			out = append(out, name)
		}
	}
	return out
}

func isTextField(field string) bool {
	for _, f := range textFields {
		if f == field {
			return true
		}
	}
	return false
}
