package shop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSampleDataset(t *testing.T) {
	ds, err := SampleDataset()
	if err != nil {
		t.Fatalf("SampleDataset: %v", err)
	}
	if len(ds.Products) != 11 || len(ds.Customers) != 3 || len(ds.Orders) != 3 {
		t.Errorf("sample has %d products, %d customers, %d orders", len(ds.Products), len(ds.Customers), len(ds.Orders))
	}

	for _, p := range ds.Products {
		if p.ID == "p-eucalyptus" && p.LowStockAlert != DefaultLowStockAlert {
			t.Errorf("eucalyptus alert = %d, want default %d", p.LowStockAlert, DefaultLowStockAlert)
		}
	}
	for _, o := range ds.Orders {
		if o.CreatedAt.IsZero() {
			t.Errorf("order %s has no created_at", o.ID)
		}
	}
}

func TestParseDataset_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "products: [", "parse shop data"},
		{"product without id", "products:\n  - {name: Rose}\n", "id and name are required"},
		{"duplicate product", "products:\n  - {id: p1, name: Rose}\n  - {id: p1, name: Tulip}\n", "duplicate product"},
		{"negative quantity", "products:\n  - {id: p1, name: Rose, quantity: -3}\n", "negative quantity"},
		{"customer without name", "customers:\n  - {id: c1}\n", "id and name are required"},
		{"duplicate customer", "customers:\n  - {id: c1, name: A}\n  - {id: c1, name: B}\n", "duplicate customer"},
		{"order for unknown customer", "orders:\n  - {id: o1, customer_id: nobody, number: LIL-1}\n", "unknown customer"},
		{"duplicate order", "customers:\n  - {id: c1, name: A}\norders:\n  - {id: o1, customer_id: c1}\n  - {id: o1, customer_id: c1}\n", "duplicate order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataset([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.yaml")
	data := "products:\n  - {id: p1, name: Dahlia, color: Purple, quantity: 3, low_stock_alert: 5}\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write data file: %v", err)
	}

	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Products) != 1 || ds.Products[0].DisplayName() != "Purple Dahlia" || !ds.Products[0].LowStock() {
		t.Errorf("unexpected products: %+v", ds.Products)
	}

	sample, err := LoadDataset("")
	if err != nil {
		t.Fatalf("LoadDataset(\"\"): %v", err)
	}
	if len(sample.Products) != 11 {
		t.Errorf("LoadDataset(\"\") = %d products, want the sample", len(sample.Products))
	}

	if _, err := LoadDataset(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
