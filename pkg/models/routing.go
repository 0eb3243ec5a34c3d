package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind identifies the value type of an extracted entity.
type EntityKind string

const (
	// EntityString is free text such as a flower type or color.
	EntityString EntityKind = "string"
	// EntityNumber is a numeric quantity or amount.
	EntityNumber EntityKind = "number"
	// EntityDate is a calendar date or timestamp, stored in UTC.
	EntityDate EntityKind = "date"
)

// dateLayouts are tried in order when a string value might be a date.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// Entity is a typed value extracted from a request.
type Entity struct {
	Kind   EntityKind `json:"kind"`
	String string     `json:"string,omitempty"`
	Number float64    `json:"number,omitempty"`
	Date   time.Time  `json:"date,omitzero"`
}

// StringEntity returns a string-valued entity.
func StringEntity(s string) Entity { return Entity{Kind: EntityString, String: s} }

// NumberEntity returns a number-valued entity.
func NumberEntity(n float64) Entity { return Entity{Kind: EntityNumber, Number: n} }

// DateEntity returns a date-valued entity normalised to UTC.
func DateEntity(t time.Time) Entity { return Entity{Kind: EntityDate, Date: t.UTC()} }

// ParseEntity converts a decoded JSON value into a typed entity.
// Strings that parse as RFC3339 or YYYY-MM-DD become dates.
func ParseEntity(v any) Entity {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateEntity(t)
			}
		}
		return StringEntity(s)
	case float64:
		return NumberEntity(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberEntity(f)
		}
		return StringEntity(x.String())
	case int:
		return NumberEntity(float64(x))
	case bool:
		return StringEntity(strconv.FormatBool(x))
	case time.Time:
		return DateEntity(x)
	default:
		return StringEntity(fmt.Sprint(x))
	}
}

// Value returns the entity as a plain Go value.
func (e Entity) Value() any {
	switch e.Kind {
	case EntityNumber:
		return e.Number
	case EntityDate:
		return e.Date
	default:
		return e.String
	}
}

// Text renders the entity for prompts and display.
func (e Entity) Text() string {
	switch e.Kind {
	case EntityNumber:
		return strconv.FormatFloat(e.Number, 'f', -1, 64)
	case EntityDate:
		if e.Date.Hour() == 0 && e.Date.Minute() == 0 && e.Date.Second() == 0 {
			return e.Date.Format("2006-01-02")
		}
		return e.Date.Format(time.RFC3339)
	default:
		return e.String
	}
}

// RoutingDecision selects the handlers for one request.
type RoutingDecision struct {
	// PrimaryHandler must resolve in the registry.
	PrimaryHandler string `json:"primary_handler"`
	// SecondaryHandlers are distinct from the primary and from each other.
	SecondaryHandlers []string `json:"secondary_handlers,omitempty"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// Entities is an open vocabulary of extracted values.
	Entities map[string]Entity `json:"entities,omitempty"`
	// SubQueries holds rewritten per-handler queries.
	SubQueries map[string]string `json:"sub_queries,omitempty"`
	// Reasoning is the classifier's short explanation, for logs only.
	Reasoning string `json:"reasoning,omitempty"`
	// Fallback is set when the proposed primary was replaced.
	Fallback bool `json:"fallback,omitempty"`
}

// Handlers returns the primary followed by the secondaries.
func (d RoutingDecision) Handlers() []string {
	names := make([]string, 0, 1+len(d.SecondaryHandlers))
	names = append(names, d.PrimaryHandler)
	return append(names, d.SecondaryHandlers...)
}

// QueryFor returns the rewritten query for a handler, or fallback when none exists.
func (d RoutingDecision) QueryFor(handler, fallback string) string {
	if q := strings.TrimSpace(d.SubQueries[handler]); q != "" {
		return q
	}
	return fallback
}

// Clone returns a deep copy of the decision.
func (d RoutingDecision) Clone() RoutingDecision {
	c := d
	c.SecondaryHandlers = append([]string(nil), d.SecondaryHandlers...)
	if d.Entities != nil {
		c.Entities = make(map[string]Entity, len(d.Entities))
		for k, v := range d.Entities {
			c.Entities[k] = v
		}
	}
	if d.SubQueries != nil {
		c.SubQueries = make(map[string]string, len(d.SubQueries))
		for k, v := range d.SubQueries {
			c.SubQueries[k] = v
		}
	}
	return c
}
