package synth

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ryanmello/lilli/pkg/models"
)

func out(handler string, data map[string]any) models.HandlerOutput {
	return models.HandlerOutput{Handler: handler, Data: data}
}

func TestSynthesize_NoOutputs(t *testing.T) {
	_, err := Synthesize(models.RoutingDecision{PrimaryHandler: "design"}, []string{"design"}, nil)
	if !errors.Is(err, ErrNoOutputs) {
		t.Fatalf("expected ErrNoOutputs, got %v", err)
	}
}

func TestSynthesize_SingleOutput(t *testing.T) {
	resp, err := Synthesize(
		models.RoutingDecision{PrimaryHandler: "inventory"},
		[]string{"inventory"},
		[]models.HandlerOutput{out("inventory", map[string]any{"message": "Yes, 40 red roses in stock.", "in_stock": true})},
	)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if resp.Message != "Yes, 40 red roses in stock." {
		t.Errorf("Message = %q", resp.Message)
	}
	if resp.Partial || len(resp.Missing) != 0 {
		t.Errorf("partial=%v missing=%v", resp.Partial, resp.Missing)
	}
	if resp.Merged["in_stock"] != true {
		t.Errorf("Merged = %v", resp.Merged)
	}
}

func TestSynthesize_SectionsFollowExecutionOrder(t *testing.T) {
	outputs := []models.HandlerOutput{
		out("design", map[string]any{"message": "Cascading bouquet of roses and lilies."}),
		out("inventory", map[string]any{"message": "All flowers in stock.", "in_stock": true}),
		out("delivery", map[string]any{"message": "Delivery tomorrow to 90210 is available.", "available": true}),
	}
	resp, err := Synthesize(models.RoutingDecision{PrimaryHandler: "design"}, []string{"design", "inventory", "delivery"}, outputs)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	design := strings.Index(resp.Message, "Design:\nCascading bouquet")
	inventory := strings.Index(resp.Message, "Inventory:\nAll flowers in stock.")
	delivery := strings.Index(resp.Message, "Delivery:\nDelivery tomorrow")
	if design < 0 || inventory < 0 || delivery < 0 {
		t.Fatalf("missing section in message:\n%s", resp.Message)
	}
	if !(design < inventory && inventory < delivery) {
		t.Errorf("sections out of execution order:\n%s", resp.Message)
	}
	if got := len(resp.Outputs); got != 3 {
		t.Errorf("Outputs has %d entries, want 3", got)
	}
}

func TestSynthesize_Partial(t *testing.T) {
	outputs := []models.HandlerOutput{
		out("design", map[string]any{"message": "Round bouquet."}),
	}
	resp, err := Synthesize(models.RoutingDecision{PrimaryHandler: "design"},
		[]string{"design", "inventory", "pricing"}, outputs)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !resp.Partial {
		t.Error("expected partial response")
	}
	if want := []string{"inventory", "pricing"}; !reflect.DeepEqual(resp.Missing, want) {
		t.Errorf("Missing = %v, want %v", resp.Missing, want)
	}
	if !strings.HasPrefix(resp.Message, PartialBanner) {
		t.Errorf("message should open with the partial banner:\n%s", resp.Message)
	}
	if !strings.HasSuffix(resp.Message, "Not completed: Inventory and Pricing.") {
		t.Errorf("message should name missing handlers:\n%s", resp.Message)
	}
	if len(resp.Outputs) != 1 || resp.Outputs[0].Handler != "design" {
		t.Errorf("Outputs = %+v", resp.Outputs)
	}
}

func TestSynthesize_StructuredBodyWithoutMessage(t *testing.T) {
	resp, err := Synthesize(models.RoutingDecision{PrimaryHandler: "pricing"}, []string{"pricing"},
		[]models.HandlerOutput{out("pricing", map[string]any{"total": 129.5, "delivery_fee": 15.0})})
	if err != nil {
		t.Fatal(err)
	}
	if want := "- delivery fee: 15\n- total: 129.5"; resp.Message != want {
		t.Errorf("Message = %q, want %q", resp.Message, want)
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name          string
		primary       string
		outputs       []models.HandlerOutput
		wantMerged    map[string]any
		wantConflicts []models.Conflict
	}{
		{
			name:    "primary wins",
			primary: "pricing",
			outputs: []models.HandlerOutput{
				out("delivery", map[string]any{"delivery_fee": 20.0}),
				out("pricing", map[string]any{"delivery_fee": 15.0, "total": 100.0}),
			},
			wantMerged: map[string]any{"delivery_fee": 15.0, "total": 100.0},
			wantConflicts: []models.Conflict{{
				Field: "delivery_fee", Chosen: 15.0, ChosenFrom: "pricing",
				Discarded: map[string]any{"delivery": 20.0},
			}},
		},
		{
			name:    "earliest wins without primary",
			primary: "design",
			outputs: []models.HandlerOutput{
				out("design", map[string]any{"message": "x"}),
				out("delivery", map[string]any{"delivery_fee": 20.0}),
				out("pricing", map[string]any{"delivery_fee": 15.0}),
			},
			wantMerged: map[string]any{"delivery_fee": 20.0},
			wantConflicts: []models.Conflict{{
				Field: "delivery_fee", Chosen: 20.0, ChosenFrom: "delivery",
				Discarded: map[string]any{"pricing": 15.0},
			}},
		},
		{
			name:    "agreement is not a conflict",
			primary: "pricing",
			outputs: []models.HandlerOutput{
				out("delivery", map[string]any{"delivery_fee": 15.0}),
				out("pricing", map[string]any{"delivery_fee": 15.0}),
			},
			wantMerged: map[string]any{"delivery_fee": 15.0},
		},
		{
			name:    "messages are never reconciled",
			primary: "a",
			outputs: []models.HandlerOutput{
				out("a", map[string]any{"message": "one"}),
				out("b", map[string]any{"message": "two"}),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, conflicts := Reconcile(tt.primary, tt.outputs)
			if !reflect.DeepEqual(merged, tt.wantMerged) {
				t.Errorf("merged = %v, want %v", merged, tt.wantMerged)
			}
			if !reflect.DeepEqual(conflicts, tt.wantConflicts) {
				t.Errorf("conflicts = %+v, want %+v", conflicts, tt.wantConflicts)
			}
		})
	}
}

func TestSynthesize_ConflictNoted(t *testing.T) {
	resp, err := Synthesize(models.RoutingDecision{PrimaryHandler: "pricing"}, []string{"delivery", "pricing"},
		[]models.HandlerOutput{
			out("delivery", map[string]any{"message": "Fee is $20.", "delivery_fee": 20.0}),
			out("pricing", map[string]any{"message": "Total $115 including $15 delivery.", "delivery_fee": 15.0}),
		})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Message, "Note: Pricing and Delivery gave different delivery fee; using Pricing's value (15).") {
		t.Errorf("conflict note missing:\n%s", resp.Message)
	}
	if len(resp.Conflicts) != 1 {
		t.Errorf("Conflicts = %+v", resp.Conflicts)
	}
}

func TestSynthesize_DoesNotAliasOutputs(t *testing.T) {
	data := map[string]any{"message": "hello"}
	resp, err := Synthesize(models.RoutingDecision{PrimaryHandler: "general"}, []string{"general"},
		[]models.HandlerOutput{out("general", data)})
	if err != nil {
		t.Fatal(err)
	}
	data["message"] = "changed"
	if resp.Outputs[0].Data["message"] != "hello" {
		t.Error("response shares output maps with the caller")
	}
}

func TestTitleAndFormatValue(t *testing.T) {
	titles := map[string]string{
		"design":       "Design",
		"order_status": "Order Status",
		"low-stock":    "Low Stock",
		"été_order":    "Été Order",
		"ñandú":        "Ñandú",
	}
	for in, want := range titles {
		got := Title(in)
		if got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Title(%q) is not valid UTF-8", in)
		}
	}
	values := []struct {
		in   any
		want string
	}{
		{nil, "none"},
		{"red", "red"},
		{12.0, "12"},
		{true, "yes"},
		{[]any{"rose", "lily"}, `["rose","lily"]`},
	}
	for _, v := range values {
		if got := FormatValue(v.in); got != v.want {
			t.Errorf("FormatValue(%v) = %q, want %q", v.in, got, v.want)
		}
	}
}
