package models

import "time"

// CartItem is one product line of a cart. Prices are not stored; they are read
// from the catalog whenever the cart is shown.
type CartItem struct {
	ID        string    `bson:"id" json:"id"`
	ProductID string    `bson:"productId" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"addedAt" json:"addedAt"`
}

// Cart belongs to a signed-in user or, for guests, to a session id. An owner
// has at most one active cart.
type Cart struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    *string    `bson:"userId,omitempty" json:"userId,omitempty"`
	SessionID string     `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Items     []CartItem `bson:"items" json:"items"`
	IsActive  bool       `bson:"isActive" json:"isActive"`
	// Version is bumped on every save and guards against lost updates.
	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Item returns the index of the line with the given id, or -1.
func (c Cart) Item(id string) int {
	for i, item := range c.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// ItemForProduct returns the index of the line holding productID, or -1.
func (c Cart) ItemForProduct(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// CartOwner identifies whose cart to use. UserID wins when both are set.
type CartOwner struct {
	UserID    string
	SessionID string
}

func (o CartOwner) Guest() bool { return o.UserID == "" }

// NewCart returns an empty active cart for owner.
func (o CartOwner) NewCart(id string, now time.Time) Cart {
	cart := Cart{ID: id, Items: []CartItem{}, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if o.Guest() {
		cart.SessionID = o.SessionID
	} else {
		userID := o.UserID
		cart.UserID = &userID
	}
	return cart
}
