package shop

import (
	"context"
	"strings"
	"testing"
)

func sampleStore(t *testing.T) *MemoryStore {
	t.Helper()
	ds, err := SampleDataset()
	if err != nil {
		t.Fatalf("SampleDataset: %v", err)
	}
	return NewMemoryStore(ds)
}

func productNames(products []Product) string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.DisplayName()
	}
	return strings.Join(names, ",")
}

func TestMemoryStore_SearchProducts(t *testing.T) {
	store := sampleStore(t)

	tests := []struct {
		name  string
		query ProductQuery
		want  string
	}{
		{"flower and color", ProductQuery{Text: "Do you have red roses?"}, "Red Rose"},
		{"flower only", ProductQuery{Text: "any tulips left"}, "Red Tulip,Yellow Tulip"},
		{"color only", ProductQuery{Text: "something white"}, "White Baby's Breath,White Lily,White Rose"},
		{"category word", ProductQuery{Text: "vases"}, "Glass Vase"},
		{"structured category", ProductQuery{Category: "greenery"}, "Green Eucalyptus"},
		{"structured color", ProductQuery{Color: "pink"}, "Pink Peony,Pink Rose"},
		{"low stock", ProductQuery{LowStockOnly: true}, "Pink Peony,White Rose,Red Tulip"},
		{"inactive hidden", ProductQuery{Text: "ranunculus"}, ""},
		{"inactive included", ProductQuery{Text: "ranunculus", IncludeInactive: true}, "Orange Ranunculus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchProducts(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("SearchProducts: %v", err)
			}
			if names := productNames(got); names != tt.want {
				t.Errorf("SearchProducts(%+v) = %q, want %q", tt.query, names, tt.want)
			}
		})
	}
}

func TestMemoryStore_UnknownTextListsEverythingActive(t *testing.T) {
	store := sampleStore(t)
	got, err := store.SearchProducts(context.Background(), ProductQuery{Text: "what do you carry"})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("got %d products, want the 10 active ones: %s", len(got), productNames(got))
	}
}

func TestMemoryStore_FindCustomers(t *testing.T) {
	store := sampleStore(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by first name", "orders for Ada please", []string{"c-1001"}},
		{"by full name", "Grace Hopper", []string{"c-1002"}},
		{"by email", "look up alan@example.com", []string{"c-1003"}},
		{"by formatted phone", "my number is 555-010-4477", []string{"c-1001"}},
		{"several", "ada and grace", []string{"c-1001", "c-1002"}},
		{"stop words only", "what is my order status", nil},
		{"no match", "Charles Babbage", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindCustomers(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("FindCustomers: %v", err)
			}
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("FindCustomers(%q) = %v, want %v", tt.query, ids, tt.want)
			}
		})
	}
}

func TestMemoryStore_CustomerOrders(t *testing.T) {
	store := sampleStore(t)
	ctx := context.Background()

	orders, err := store.CustomerOrders(ctx, "c-1001", 0)
	if err != nil {
		t.Fatalf("CustomerOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].Number != "LIL-2117" || orders[1].Number != "LIL-2041" {
		t.Errorf("orders = %+v, want LIL-2117 then LIL-2041", orders)
	}

	limited, err := store.CustomerOrders(ctx, "c-1001", 1)
	if err != nil {
		t.Fatalf("CustomerOrders: %v", err)
	}
	if len(limited) != 1 || limited[0].Number != "LIL-2117" {
		t.Errorf("limited orders = %+v, want only LIL-2117", limited)
	}

	none, err := store.CustomerOrders(ctx, "c-1003", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("orders for c-1003 = %v, %v; want none", none, err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := sampleStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.SearchProducts(ctx, ProductQuery{}); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestSingular(t *testing.T) {
	tests := map[string]string{
		"roses":   "rose",
		"lilies":  "lily",
		"tulips":  "tulip",
		"peonies": "peony",
		"vases":   "vase",
		"rose":    "rose",
		"grass":   "grass",
		"is":      "is",
	}
	for in, want := range tests {
		if got := singular(in); got != want {
			t.Errorf("singular(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCustomerTerms(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Ada Lovelace", "ada,lovelace"},
		{"call (555) 010-4477", "call,555,0104477"},
		{"555-010-4477", "5550104477"},
		{"what is my order status?", ""},
		{"Ada, ada!", "ada"},
	}
	for _, tt := range tests {
		if got := strings.Join(CustomerTerms(tt.query), ","); got != tt.want {
			t.Errorf("CustomerTerms(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestLowStockAlert(t *testing.T) {
	tests := []struct {
		p    Product
		want string
	}{
		{Product{Name: "Rose", Color: "White", Quantity: 8, LowStockAlert: 24}, "White Rose is low: 8 left (alert at 24)"},
		{Product{Name: "Tulip", Color: "Red", Quantity: 0, LowStockAlert: 20}, "Red Tulip is out of stock"},
		{Product{Name: "Glass Vase", Quantity: 5, LowStockAlert: 5}, "Glass Vase is low: 5 left (alert at 5)"},
	}
	for _, tt := range tests {
		if !tt.p.LowStock() {
			t.Errorf("%s should be low", tt.p.DisplayName())
		}
		if got := LowStockAlert(tt.p); got != tt.want {
			t.Errorf("LowStockAlert = %q, want %q", got, tt.want)
		}
	}
}
