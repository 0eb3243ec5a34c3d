package shop

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sample.yaml
var sampleData []byte

// Dataset is a full set of shop records, as loaded from YAML.
type Dataset struct {
	Products  []Product  `yaml:"products"`
	Customers []Customer `yaml:"customers"`
	Orders    []Order    `yaml:"orders"`
}

// SampleDataset returns the built-in sample records.
func SampleDataset() (*Dataset, error) {
	return ParseDataset(sampleData)
}

// LoadDataset reads records from a YAML file. An empty path returns the
// sample records.
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return SampleDataset()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shop data: %w", err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ParseDataset decodes and checks YAML records. Products without an alert
// threshold get DefaultLowStockAlert.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse shop data: %w", err)
	}

	products := make(map[string]bool, len(ds.Products))
	for i := range ds.Products {
		p := &ds.Products[i]
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("product %d: id and name are required", i+1)
		}
		if products[p.ID] {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		if p.Quantity < 0 {
			return nil, fmt.Errorf("product %q: negative quantity %d", p.ID, p.Quantity)
		}
		products[p.ID] = true
		if p.LowStockAlert == 0 {
			p.LowStockAlert = DefaultLowStockAlert
		}
	}

	customers := make(map[string]bool, len(ds.Customers))
	for i, c := range ds.Customers {
		if c.ID == "" || strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("customer %d: id and name are required", i+1)
		}
		if customers[c.ID] {
			return nil, fmt.Errorf("duplicate customer id %q", c.ID)
		}
		customers[c.ID] = true
	}

	orders := make(map[string]bool, len(ds.Orders))
	for i, o := range ds.Orders {
		if o.ID == "" {
			return nil, fmt.Errorf("order %d: id is required", i+1)
		}
		if orders[o.ID] {
			return nil, fmt.Errorf("duplicate order id %q", o.ID)
		}
		if !customers[o.CustomerID] {
			return nil, fmt.Errorf("order %q: unknown customer %q", o.ID, o.CustomerID)
		}
		orders[o.ID] = true
	}
	return &ds, nil
}
