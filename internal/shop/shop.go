// Package shop holds the flower shop's records (products, customers, and
// orders) and the lookup tools handlers use to answer from them.
package shop

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// DefaultLowStockAlert is the alert threshold for products that set none.
const DefaultLowStockAlert = 10

// Product is one stocked item.
type Product struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Color    string  `yaml:"color,omitempty" json:"color,omitempty"`
	Category string  `yaml:"category,omitempty" json:"category,omitempty"`
	Quantity int     `yaml:"quantity" json:"quantity"`
	// LowStockAlert is the quantity at or below which the product is low.
	LowStockAlert int     `yaml:"low_stock_alert,omitempty" json:"low_stock_alert"`
	StemLengthCM  int     `yaml:"stem_length_cm,omitempty" json:"stem_length_cm,omitempty"`
	RetailPrice   float64 `yaml:"retail_price,omitempty" json:"retail_price,omitempty"`
	Inactive      bool    `yaml:"inactive,omitempty" json:"inactive,omitempty"`
}

// DisplayName is the color and name, e.g. "Red Rose".
func (p Product) DisplayName() string {
	if p.Color == "" {
		return p.Name
	}
	return p.Color + " " + p.Name
}

// LowStock reports whether the quantity is at or below the alert threshold.
func (p Product) LowStock() bool {
	return p.Quantity <= p.LowStockAlert
}

// Customer is a person with an order history.
type Customer struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
	Phone string `yaml:"phone,omitempty" json:"phone,omitempty"`
}

// Order is one customer order.
type Order struct {
	ID         string    `yaml:"id" json:"id"`
	CustomerID string    `yaml:"customer_id" json:"customer_id"`
	Number     string    `yaml:"number" json:"number"`
	Status     string    `yaml:"status" json:"status"`
	Total      float64   `yaml:"total" json:"total"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`
}

// ProductQuery filters products. Zero fields do not filter.
type ProductQuery struct {
	// Text is free text such as "do you have red roses"; flower names,
	// categories, and colors found in it narrow the result.
	Text     string
	Category string
	Color    string
	// LowStockOnly keeps products at or below their alert threshold.
	LowStockOnly    bool
	IncludeInactive bool
}

// Store is a source of shop records.
type Store interface {
	// SearchProducts returns matching products ordered by name, then color.
	SearchProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	// FindCustomers matches a name, email, or phone found in query.
	FindCustomers(ctx context.Context, query string) ([]Customer, error)
	// CustomerOrders returns up to limit orders, newest first.
	CustomerOrders(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// Filter applies q to products and sorts the result. Store implementations
// that cannot express the text match natively run their candidates through it.
func Filter(products []Product, q ProductQuery) []Product {
	var out []Product
	for _, p := range products {
		if p.Inactive && !q.IncludeInactive {
			continue
		}
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.Color != "" && !strings.EqualFold(p.Color, q.Color) {
			continue
		}
		if q.LowStockOnly && !p.LowStock() {
			continue
		}
		out = append(out, p)
	}
	out = matchText(out, q.Text)
	SortProducts(out)
	return out
}

// SortProducts orders products by name, then color.
func SortProducts(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return strings.ToLower(a.Color) < strings.ToLower(b.Color)
	})
}

// matchText narrows products to the flowers and colors named in text.
// Text that names no known flower, category, or color keeps everything.
func matchText(products []Product, text string) []Product {
	words := Words(text)
	if len(words) == 0 {
		return products
	}

	var named []Product
	for _, p := range products {
		if words[singular(lastWord(p.Name))] || (p.Category != "" && words[singular(strings.ToLower(p.Category))]) {
			named = append(named, p)
		}
	}
	if len(named) == 0 {
		named = products
	}

	var colored []Product
	for _, p := range named {
		if p.Color != "" && words[strings.ToLower(p.Color)] {
			colored = append(colored, p)
		}
	}
	if len(colored) > 0 {
		return colored
	}
	return named
}

// Words splits text into lowercase singular words, dropping punctuation.
func Words(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@' && r != '.' && r != '\'' && r != '+'
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".'")
		if f == "" {
			continue
		}
		words[f] = true
		words[singular(f)] = true
	}
	return words
}

func lastWord(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// singular strips common English plural endings: lilies, roses, tulips.
func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "ses") || strings.HasSuffix(w, "xes")):
		return w[:len(w)-1]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	default:
		return w
	}
}

// stopWords never identify a customer.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true, "what": true,
	"order": true, "orders": true, "history": true, "customer": true, "account": true,
	"have": true, "with": true, "about": true, "please": true, "look": true, "find": true,
	"last": true, "recent": true, "status": true, "my": true, "me": true, "is": true,
}

// CustomerTerms returns the words of query that could identify a customer:
// names, emails, and phone numbers reduced to digits.
func CustomerTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if d := Digits(f); len(d) >= 7 {
			f = d
		} else if len([]rune(f)) < 3 || stopWords[f] {
			continue
		}
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

// MatchCustomer reports whether a customer is identified by one of terms.
func MatchCustomer(c Customer, terms []string) bool {
	names := strings.Fields(strings.ToLower(c.Name))
	phone := Digits(c.Phone)
	for _, t := range terms {
		if strings.EqualFold(t, c.Email) || (phone != "" && t == phone) {
			return true
		}
		for _, n := range names {
			if t == n {
				return true
			}
		}
	}
	return false
}

// Digits keeps only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LowStockAlert formats the alert shown for a low product.
func LowStockAlert(p Product) string {
	if p.Quantity == 0 {
		return fmt.Sprintf("%s is out of stock", p.DisplayName())
	}
	return fmt.Sprintf("%s is low: %d left (alert at %d)", p.DisplayName(), p.Quantity, p.LowStockAlert)
}
