package giftcatalog

import "errors"

// Invoice pricing is fixed: every gift costs 50 Telegram Stars.
const (
	PriceStars = 50
	Currency   = "XTR"
)

// ErrUnknownGift indicates a gift key that is not part of the catalog.
var ErrUnknownGift = errors.New("unknown gift")

// Gift describes a single purchasable gift.
// DeliveryID is the opaque identifier the Telegram gift-delivery API expects.
type Gift struct {
	Key         string
	DisplayName string
	DeliveryID  string
}

// Catalog is a static, read-only gift table loaded at startup.
type Catalog struct {
	gifts []Gift
	byKey map[string]Gift
}

// New builds a catalog from the given gifts, preserving their order for List.
func New(gifts []Gift) *Catalog {
	byKey := make(map[string]Gift, len(gifts))
	for _, g := range gifts {
		byKey[g.Key] = g
	}
	return &Catalog{gifts: gifts, byKey: byKey}
}

// Default returns the built-in gift catalog.
func Default() *Catalog {
	return New([]Gift{
		{Key: "heart_14feb", DisplayName: "❤️ Valentine's heart", DeliveryID: "5801108895304779062"},
		{Key: "newyear_bear", DisplayName: "🎄 New Year bear", DeliveryID: "5956217000635139069"},
		{Key: "bear_14feb", DisplayName: "🧸 Valentine's bear", DeliveryID: "5800655655995968830"},
	})
}

// Resolve looks up a gift by catalog key.
func (c *Catalog) Resolve(key string) (Gift, error) {
	g, ok := c.byKey[key]
	if !ok {
		return Gift{}, ErrUnknownGift
	}
	return g, nil
}

// List returns the gifts in stable catalog order.
func (c *Catalog) List() []Gift {
	out := make([]Gift, len(c.gifts))
	copy(out, c.gifts)
	return out
}
