package model

// RewardItem is a catalog entry that can be placed in the cart.
type RewardItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int    `json:"points_required"`
	ImageURL       string `json:"image_url,omitempty"`
}

// CartEntry is a reward item plus how many of it the user wants.
// Quantity is always >= 1 while the entry is in a cart.
type CartEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int    `json:"points_required"`
	ImageURL       string `json:"image_url,omitempty"`
	Quantity       int    `json:"quantity"`
}
