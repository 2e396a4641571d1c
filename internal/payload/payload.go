// Package payload defines the invoice payload round-tripped through the
// payment platform. The payload is the sole carrier of purchase intent across
// the payment confirmation boundary: a confirmation may arrive with no other
// session context (e.g. after a process restart), so it must be
// self-describing and re-validated on every decode.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Version is the current payload schema version.
const Version = 1

// ErrCorrupt indicates a payload that failed to parse or validate.
var ErrCorrupt = errors.New("corrupt invoice payload")

// Payload is the versioned purchase intent carried by an invoice.
// Note is nil when the buyer declined to attach a text note.
type Payload struct {
	Version int     `json:"v" validate:"required,eq=1"`
	UserID  int64   `json:"user_id" validate:"required,gt=0"`
	GiftKey string  `json:"gift_key" validate:"required"`
	Note    *string `json:"note"`
}

var validate = validatorv10.New()

// Encode serializes a purchase intent into invoice payload bytes.
func Encode(userID int64, giftKey string, note *string) ([]byte, error) {
	p := Payload{
		Version: Version,
		UserID:  userID,
		GiftKey: giftKey,
		Note:    note,
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// Decode parses and validates invoice payload bytes. The bytes crossed the
// payment platform and are attacker-influenceable transport data; any parse
// or validation failure is reported as ErrCorrupt.
func Decode(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := validate.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, nil
}
