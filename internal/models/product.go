package models

import "time"

// ProductType decides which kitchen station prepares a product
type ProductType string

const (
	ProductBeer        ProductType = "BEER"
	ProductWineOrDrink ProductType = "WINE_OR_DRINK"
	ProductMeal        ProductType = "MEAL"
	ProductPastries    ProductType = "PASTRIES"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductBeer, ProductWineOrDrink, ProductMeal, ProductPastries:
		return true
	}
	return false
}

// Product is a menu entry. EstimatedTime is in seconds.
type Product struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	Price         float64     `json:"price"`
	EstimatedTime int         `json:"estimated_time"`
	Type          ProductType `json:"type"`
	Active        bool        `json:"active"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ProductRequest struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	EstimatedTime int     `json:"estimated_time"`
	Type          string  `json:"type"`
	Active        *bool   `json:"active,omitempty"`
}
