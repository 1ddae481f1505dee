package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type ActionKind string

const (
	ActionApplyDiscount   ActionKind = "apply_discount"
	ActionRestock         ActionKind = "restock"
	ActionReviewProduct   ActionKind = "review_product"
	ActionReviewInventory ActionKind = "review_inventory"
)

// ActionParams is a closed set: only the variants in this file implement it.
type ActionParams interface {
	Kind() ActionKind
	isActionParams()
}

type ApplyDiscountParams struct {
	ProductID       uuid.UUID `json:"productId"`
	DiscountPercent int       `json:"discountPercent"`
}

type RestockParams struct {
	ProductID         uuid.UUID `json:"productId"`
	SuggestedQuantity int       `json:"suggestedQuantity"`
}

type ReviewProductParams struct {
	ProductID uuid.UUID `json:"productId"`
}

type ReviewInventoryParams struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}

func (ApplyDiscountParams) Kind() ActionKind   { return ActionApplyDiscount }
func (RestockParams) Kind() ActionKind         { return ActionRestock }
func (ReviewProductParams) Kind() ActionKind   { return ActionReviewProduct }
func (ReviewInventoryParams) Kind() ActionKind { return ActionReviewInventory }

func (ApplyDiscountParams) isActionParams()   {}
func (RestockParams) isActionParams()         {}
func (ReviewProductParams) isActionParams()   {}
func (ReviewInventoryParams) isActionParams() {}

// Actionable is what a client can do with a notification. On the wire it is
// {"action": "<kind>", "params": {...}}.
type Actionable struct {
	Params ActionParams
}

func NewActionable(p ActionParams) Actionable {
	return Actionable{Params: p}
}

// Action returns the discriminator, empty when no action is attached.
func (a Actionable) Action() ActionKind {
	if a.Params == nil {
		return ""
	}
	return a.Params.Kind()
}

type actionableWire struct {
	Action ActionKind      `json:"action"`
	Params json.RawMessage `json:"params"`
}

func (a Actionable) MarshalJSON() ([]byte, error) {
	if a.Params == nil {
		return []byte("null"), nil
	}
	params, err := json.Marshal(a.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionableWire{Action: a.Params.Kind(), Params: params})
}

func (a *Actionable) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		a.Params = nil
		return nil
	}
	var wire actionableWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var params ActionParams
	switch wire.Action {
	case ActionApplyDiscount:
		var p ApplyDiscountParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return err
		}
		params = p
	case ActionRestock:
		var p RestockParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return err
		}
		params = p
	case ActionReviewProduct:
		var p ReviewProductParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return err
		}
		params = p
	case ActionReviewInventory:
		var p ReviewInventoryParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return err
		}
		params = p
	default:
		return fmt.Errorf("unknown actionable action %q", wire.Action)
	}
	a.Params = params
	return nil
}
