package dto

import "time"

// ItemResponse represents a shopping item as exposed via transport layers.
type ItemResponse struct {
	ID       int64     `json:"id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Title    string    `json:"title"`
	URL      string    `json:"url,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Price    *float64  `json:"price,omitempty"`
	Quantity int       `json:"quantity"`
	Status   string    `json:"status"`
	AddedAt  time.Time `json:"added_at"`
}
