package store

import (
	"github.com/shopspring/decimal"

	"github.com/storepulse/sales-engine/internal/model"
)

// DefaultCatalog is the product set a fresh store starts with.
func DefaultCatalog() []model.Product {
	p := func(id int64, name, category, price string) model.Product {
		return model.Product{
			ID:       id,
			Name:     name,
			Category: category,
			Price:    decimal.RequireFromString(price),
			Active:   true,
		}
	}
	return []model.Product{
		p(1, "Coffee", "Hot Drinks", "3.99"),
		p(2, "Iced Tea", "Cold Drinks", "2.99"),
		p(3, "Sandwich", "Food", "5.99"),
		p(4, "Salad", "Food", "4.99"),
		p(5, "Juice", "Cold Drinks", "3.49"),
		p(6, "Hot Chocolate", "Hot Drinks", "4.29"),
		p(7, "Muffin", "Bakery", "2.49"),
		p(8, "Croissant", "Bakery", "2.29"),
	}
}
