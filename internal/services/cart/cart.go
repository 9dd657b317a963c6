// Package cart implements the store-backed shopping cart. Carts live in
// the shared store under a 7 day TTL; product facts are validated
// through the circuit-broken product client, with a configurable
// optimistic policy when the product service is unreachable.
package cart

import (
	"time"
)

// TTL is how long an untouched cart survives.
const TTL = 7 * 24 * time.Hour

// Item is one line in a cart. Product facts are snapshotted at add time
// and refreshed on validation.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Unit      string  `json:"unit,omitempty"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Cart is the stored document.
type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subtotal is the sum of line totals.
func (c Cart) Subtotal() float64 {
	var sum float64
	for _, it := range c.Items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

// ItemCount is the total quantity across lines.
func (c Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// find returns the index of productID in the cart, or -1.
func (c Cart) find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// View is the cart as returned to clients, with derived totals.
type View struct {
	Cart
	Subtotal  float64 `json:"subtotal"`
	ItemCount int     `json:"itemCount"`
}

// NewView derives totals for c.
func NewView(c Cart) View {
	if c.Items == nil {
		c.Items = []Item{}
	}
	return View{Cart: c, Subtotal: c.Subtotal(), ItemCount: c.ItemCount()}
}

// Problem describes one line that failed validation.
type Problem struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
	Available int    `json:"available,omitempty"`
}

// Validation is the outcome of a cart validation pass.
type Validation struct {
	Valid bool `json:"valid"`
	// Degraded is set when product facts could not be confirmed and the
	// optimistic policy let the cart through.
	Degraded bool      `json:"degraded,omitempty"`
	Problems []Problem `json:"problems,omitempty"`
}
