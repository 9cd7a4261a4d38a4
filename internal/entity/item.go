package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Item status values. An item starts active and moves to ordered
// exactly once, as part of a successful order run. It never moves back.
const (
	StatusActive  = "active"
	StatusOrdered = "ordered"
)

// ShoppingItem is one row on the shared shopping list.
type ShoppingItem struct {
	bun.BaseModel `bun:"table:shopping_items"`

	ID              int64     `bun:",pk,autoincrement"`
	UserID          string    `bun:"user_id,notnull"`
	UserName        string    `bun:"user_name,notnull"`
	ProductTitle    string    `bun:"product_title,notnull"`
	ProductURL      string    `bun:"product_url,nullzero"`
	ProductImageURL string    `bun:"product_image_url,nullzero"`
	Price           *float64  `bun:"price"`
	Quantity        int       `bun:"quantity,notnull"`
	Status          string    `bun:"status,notnull,default:'active'"`
	AddedAt         time.Time `bun:"added_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Subtotal returns price * quantity, or 0 when the price is unknown.
func (i *ShoppingItem) Subtotal() float64 {
	if i.Price == nil {
		return 0
	}
	return *i.Price * float64(i.Quantity)
}
