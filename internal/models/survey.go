package models

import (
	"encoding/json"
	"time"
)

// Survey is the customer's rating of a paid order
type Survey struct {
	ID               int       `json:"id"`
	OrderID          string    `json:"order_id"`
	TableRating      int       `json:"table_rating"`
	RestaurantRating int       `json:"restaurant_rating"`
	WaiterRating     int       `json:"waiter_rating"`
	ChefRating       int       `json:"chef_rating"`
	Comment          *string   `json:"comment,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Average is the mean of the four ratings.
func (s Survey) Average() float64 {
	return float64(s.TableRating+s.RestaurantRating+s.WaiterRating+s.ChefRating) / 4
}

func (s Survey) MarshalJSON() ([]byte, error) {
	type plain Survey
	return json.Marshal(struct {
		plain
		Average float64 `json:"average"`
	}{plain(s), s.Average()})
}

type SurveyRequest struct {
	OrderID          string  `json:"order_id" validate:"required"`
	TableRating      int     `json:"table_rating" validate:"min=1,max=10"`
	RestaurantRating int     `json:"restaurant_rating" validate:"min=1,max=10"`
	WaiterRating     int     `json:"waiter_rating" validate:"min=1,max=10"`
	ChefRating       int     `json:"chef_rating" validate:"min=1,max=10"`
	Comment          *string `json:"comment,omitempty" validate:"omitempty,notblank"`
}
