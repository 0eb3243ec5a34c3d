package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanmello/lilli/internal/handler"
	"github.com/ryanmello/lilli/pkg/models"
)

// Tool names.
const (
	SearchInventoryTool = "search_inventory"
	LookupCustomerTool  = "lookup_customer"
)

// recentOrders is how many orders lookup_customer shows per customer.
const recentOrders = 5

// Tools returns the lookups backed by store.
func Tools(store Store) []handler.Tool {
	return []handler.Tool{
		&searchInventory{store: store},
		&lookupCustomer{store: store},
	}
}

type searchInventory struct {
	store Store
}

func (t *searchInventory) Name() string { return SearchInventoryTool }

func (t *searchInventory) Description() string {
	return "Searches stocked products. Free text narrows by flower and color; leave everything empty to list all active products."
}

func (t *searchInventory) Parameters() models.OutputShape {
	return models.OutputShape{Fields: []models.FieldSpec{
		{Name: "query", Type: models.FieldString, Description: "Free text, e.g. red roses"},
		{Name: "category", Type: models.FieldString, Description: "Flowers, Greenery, Filler, or Vases"},
		{Name: "color", Type: models.FieldString},
		{Name: "low_stock", Type: models.FieldBoolean, Description: "Only products at or below their alert threshold"},
		{Name: "include_inactive", Type: models.FieldBoolean},
	}}
}

func (t *searchInventory) Call(ctx context.Context, args map[string]any) (handler.ToolResult, error) {
	q := ProductQuery{
		Text:            stringArg(args, "query"),
		Category:        stringArg(args, "category"),
		Color:           stringArg(args, "color"),
		LowStockOnly:    boolArg(args, "low_stock"),
		IncludeInactive: boolArg(args, "include_inactive"),
	}
	products, err := t.store.SearchProducts(ctx, q)
	if err != nil {
		return handler.ToolResult{}, fmt.Errorf("search products: %w", err)
	}
	return InventoryResult(products), nil
}

// InventoryResult reports products the way the inventory handler answers:
// per-item stock, low-stock alerts, and whether everything found is in stock.
func InventoryResult(products []Product) handler.ToolResult {
	items := make([]any, 0, len(products))
	alerts := make([]any, 0)
	inStock := len(products) > 0
	for _, p := range products {
		item := map[string]any{
			"name":            p.DisplayName(),
			"color":           p.Color,
			"quantity":        p.Quantity,
			"low_stock":       p.LowStock(),
			"low_stock_alert": p.LowStockAlert,
		}
		if p.StemLengthCM > 0 {
			item["stem_length"] = fmt.Sprintf("%d cm", p.StemLengthCM)
		}
		if p.RetailPrice > 0 {
			item["retail_price"] = p.RetailPrice
		}
		items = append(items, item)
		if p.LowStock() {
			alerts = append(alerts, LowStockAlert(p))
		}
		if p.Quantity == 0 {
			inStock = false
		}
	}
	return handler.ToolResult{
		Content: map[string]any{"count": len(products), "products": items},
		Fields: map[string]any{
			"items":            items,
			"low_stock_alerts": alerts,
			"in_stock":         inStock,
		},
	}
}

type lookupCustomer struct {
	store Store
}

func (t *lookupCustomer) Name() string { return LookupCustomerTool }

func (t *lookupCustomer) Description() string {
	return "Finds customers by name, email, or phone and lists their recent orders."
}

func (t *lookupCustomer) Parameters() models.OutputShape {
	return models.OutputShape{Fields: []models.FieldSpec{
		{Name: "query", Type: models.FieldString, Required: true, Description: "Name, email, or phone"},
	}}
}

func (t *lookupCustomer) Call(ctx context.Context, args map[string]any) (handler.ToolResult, error) {
	customers, err := t.store.FindCustomers(ctx, stringArg(args, "query"))
	if err != nil {
		return handler.ToolResult{}, fmt.Errorf("find customers: %w", err)
	}

	found := make([]any, 0, len(customers))
	var res handler.ToolResult
	for _, c := range customers {
		orders, err := t.store.CustomerOrders(ctx, c.ID, 0)
		if err != nil {
			return handler.ToolResult{}, fmt.Errorf("orders for %s: %w", c.ID, err)
		}
		shown := orders
		if len(shown) > recentOrders {
			shown = shown[:recentOrders]
		}
		list := make([]any, len(shown))
		for i, o := range shown {
			list[i] = map[string]any{
				"number": o.Number,
				"status": o.Status,
				"total":  o.Total,
				"date":   o.CreatedAt.Format("2006-01-02"),
			}
		}
		found = append(found, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"email":       c.Email,
			"order_count": len(orders),
			"orders":      list,
		})

		if len(customers) == 1 {
			res.Fields = map[string]any{
				"customer_name": c.Name,
				"customer_id":   c.ID,
				"order_count":   len(orders),
			}
			if len(orders) > 0 {
				res.Fields["last_order"] = FormatOrder(orders[0])
			}
		}
	}
	res.Content = map[string]any{"count": len(customers), "customers": found}
	return res, nil
}

// FormatOrder renders an order as "LIL-2117 (processing, 2026-02-10)".
func FormatOrder(o Order) string {
	return fmt.Sprintf("%s (%s, %s)", o.Number, o.Status, o.CreatedAt.Format("2006-01-02"))
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
