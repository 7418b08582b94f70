// Package trade defines the offer value type and the validation rules applied
// to offer drafts before they reach the negotiation store. An offer is always
// handled as an immutable snapshot: validation clamps a draft against the
// offering player's live inventory and never mutates stored state.
package trade

import (
	"errors"
	"sort"

	"trade_post/internal/models"
)

// Side identifies which half of a negotiation a player controls.
type Side string

// The two sides of a negotiation. The initiator owns the from-offer,
// the responder owns the to-offer.
const (
	SideInitiator Side = "initiator"
	SideResponder Side = "responder"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideInitiator {
		return SideResponder
	}
	return SideInitiator
}

// Status is the lifecycle state of a trade request.
type Status string

// Trade request lifecycle states. Settled and Cancelled are terminal.
const (
	StatusOpen      Status = "open"
	StatusLocked    Status = "locked"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
)

// Final reports whether the status permits no further mutation.
func (s Status) Final() bool {
	return s == StatusSettled || s == StatusCancelled
}

// Predefined errors returned by the negotiation store and settlement executor.
var (
	// ErrOfferLocked indicates an edit against a side whose offer is already accepted.
	ErrOfferLocked = errors.New("trade: offer is locked")
	// ErrAlreadyFinalized indicates a mutating call against a settled or cancelled request.
	ErrAlreadyFinalized = errors.New("trade: request already finalized")
	// ErrStaleInventory indicates settlement-time re-validation failed against live inventories.
	ErrStaleInventory = errors.New("trade: inventory no longer supports the locked offer")
	// ErrUnchangedOffer indicates a push identical to the stored offer; the retry-safe no-op.
	ErrUnchangedOffer = errors.New("trade: offer unchanged")
	// ErrStaleCounter indicates a push whose edit counter is not newer than the stored one.
	ErrStaleCounter = errors.New("trade: stale edit counter")
	// ErrNotParticipant indicates the caller is neither side of the request.
	ErrNotParticipant = errors.New("trade: player is not a participant")
	// ErrNoActiveWarband indicates the player has no roster to trade from.
	ErrNoActiveWarband = errors.New("trade: player has no active warband")
	// ErrSelfTrade indicates an attempt to open a negotiation with oneself.
	ErrSelfTrade = errors.New("trade: cannot trade with yourself")
	// ErrSettlementTransfer indicates the atomic transfer failed for a reason
	// other than validation; the request stays locked and settle may be retried.
	ErrSettlementTransfer = errors.New("trade: settlement transfer failed")
	// ErrRequestNotFound indicates an unknown trade request ID.
	ErrRequestNotFound = errors.New("trade: request not found")
)

// CloneOffer returns a deep copy of the offer so stored snapshots can never
// alias a caller's slice.
func CloneOffer(offer models.TradeOffer) models.TradeOffer {
	clone := models.TradeOffer{Gold: offer.Gold}
	if offer.TraderID != nil {
		traderID := *offer.TraderID
		clone.TraderID = &traderID
	}
	if len(offer.Items) > 0 {
		clone.Items = make([]models.TradeOfferItem, len(offer.Items))
		copy(clone.Items, offer.Items)
	}
	return clone
}

// EqualOffers reports whether two offers commit the same gold, trader, and
// item quantities. Item order is irrelevant.
func EqualOffers(a, b models.TradeOffer) bool {
	if a.Gold != b.Gold {
		return false
	}
	if (a.TraderID == nil) != (b.TraderID == nil) {
		return false
	}
	if a.TraderID != nil && *a.TraderID != *b.TraderID {
		return false
	}
	return equalQuantities(itemQuantities(a.Items), itemQuantities(b.Items))
}

func itemQuantities(items []models.TradeOfferItem) map[int32]int {
	quantities := make(map[int32]int, len(items))
	for _, item := range items {
		if item.Quantity > 0 {
			quantities[item.ID] += item.Quantity
		}
	}
	return quantities
}

func equalQuantities(a, b map[int32]int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, quantity := range a {
		if b[id] != quantity {
			return false
		}
	}
	return true
}

// PruneOffer normalizes a draft for transmission: duplicate item lines are
// merged, lines with a non-positive quantity are dropped, and negative gold
// is zeroed. Names and costs are kept from the first occurrence of each
// line; the server re-derives them from inventory anyway.
func PruneOffer(offer models.TradeOffer) models.TradeOffer {
	pruned := CloneOffer(offer)
	pruned.Items = nil
	if pruned.Gold < 0 {
		pruned.Gold = 0
	}

	quantities := itemQuantities(offer.Items)
	seen := make(map[int32]bool, len(quantities))
	for _, item := range offer.Items {
		quantity, ok := quantities[item.ID]
		if !ok || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		item.Quantity = quantity
		pruned.Items = append(pruned.Items, item)
	}
	sort.Slice(pruned.Items, func(i, j int) bool { return pruned.Items[i].ID < pruned.Items[j].ID })
	return pruned
}

// ClampOffer validates a draft against the offering player's live inventory.
// Gold is clamped to [0, available gold]; duplicate item lines are merged so
// the same physical item cannot be committed twice; each merged line is
// clamped to [0, available quantity] and lines that clamp to zero are
// dropped. Item names and unit costs are taken from the inventory, not the
// draft, since the client's view may be stale. The result is returned in
// deterministic item-ID order.
func ClampOffer(draft models.TradeOffer, inv *models.Inventory) models.TradeOffer {
	clamped := models.TradeOffer{Gold: draft.Gold}
	if draft.TraderID != nil {
		traderID := *draft.TraderID
		clamped.TraderID = &traderID
	}

	if clamped.Gold < 0 {
		clamped.Gold = 0
	}
	if available := inv.AvailableGold(); clamped.Gold > available {
		clamped.Gold = available
	}

	quantities := itemQuantities(draft.Items)
	ids := make([]int32, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		quantity := quantities[id]
		if available := inv.AvailableQuantity(id); quantity > available {
			quantity = available
		}
		if quantity <= 0 {
			continue
		}
		stashItem := inv.Items[id]
		clamped.Items = append(clamped.Items, models.TradeOfferItem{
			ID:       id,
			Name:     stashItem.Name,
			Quantity: quantity,
			UnitCost: stashItem.UnitCost,
		})
	}

	return clamped
}

// Satisfiable reports whether the inventory currently covers the offer in
// full. Used by the settlement executor's mandatory re-validation.
func Satisfiable(offer models.TradeOffer, inv *models.Inventory) bool {
	if offer.Gold > inv.AvailableGold() {
		return false
	}
	for id, quantity := range itemQuantities(offer.Items) {
		if quantity > inv.AvailableQuantity(id) {
			return false
		}
	}
	return true
}
