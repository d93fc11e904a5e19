package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryDrinks Category = "drinks"
	CategoryFood   Category = "food"
	CategoryWine   Category = "wine"
)

// ParseCategory accepts the category names used by the backend catalog flags.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryDrinks, CategoryFood, CategoryWine:
		return c, nil
	default:
		return "", ErrUnknownCategory
	}
}

func (c Category) String() string {
	return string(c)
}

// Product is an immutable catalog entry fetched for one scan session.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	InDrinks bool
	InFood   bool
	InWine   bool
}

// In reports whether the product is offered at counters of the given category.
func (p Product) In(c Category) bool {
	switch c {
	case CategoryDrinks:
		return p.InDrinks
	case CategoryFood:
		return p.InFood
	case CategoryWine:
		return p.InWine
	default:
		return false
	}
}

// FilterCategory keeps the products of one category, preserving catalog order.
func FilterCategory(products []Product, c Category) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.In(c) {
			out = append(out, p)
		}
	}
	return out
}
