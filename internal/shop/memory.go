package shop

import (
	"context"
	"sort"
)

// MemoryStore serves a Dataset from memory. It backs offline runs and
// deployments without the SQLite store. It is read-only once created.
type MemoryStore struct {
	products  []Product
	customers []Customer
	orders    []Order
}

// NewMemoryStore copies ds into a new store.
func NewMemoryStore(ds *Dataset) *MemoryStore {
	s := &MemoryStore{}
	if ds != nil {
		s.products = append([]Product(nil), ds.Products...)
		s.customers = append([]Customer(nil), ds.Customers...)
		s.orders = append([]Order(nil), ds.Orders...)
	}
	return s
}

// SearchProducts implements Store.
func (s *MemoryStore) SearchProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(s.products, q), nil
}

// FindCustomers implements Store.
func (s *MemoryStore) FindCustomers(ctx context.Context, query string) ([]Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := CustomerTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var out []Customer
	for _, c := range s.customers {
		if MatchCustomer(c, terms) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CustomerOrders implements Store.
func (s *MemoryStore) CustomerOrders(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
