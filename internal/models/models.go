// Package models defines the data structures used throughout the application.
// It includes request and response payloads for authentication, trade
// negotiation, stash management, and warband information.
package models

import "github.com/google/uuid"

// AuthRequest represents the authentication request payload.
// It contains the username and password provided by the player.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response payload.
// It contains the generated token upon successful authentication.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents a generic error response payload.
// It contains a string describing the encountered error.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// Player represents a player in the campaign.
// It holds the player's identifier, credentials, and warband binding.
type Player struct {
	ID       int32
	Username string
	Password string
}

// Warband is a player's active roster. Gold and the stash hang off it.
type Warband struct {
	ID       int32
	PlayerID int32
	Name     string
	Gold     int
}

// TradeOfferItem is a single item line in an offer. A line with a zero
// quantity is equivalent to absence and is pruned before transmission.
type TradeOfferItem struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	UnitCost int    `json:"unitCost"`
}

// TradeOffer is one side's proposed trade: gold plus item lines, optionally
// carried by a delegated trader (a hero sent to conduct the exchange).
type TradeOffer struct {
	TraderID *int32           `json:"traderId,omitempty"`
	Gold     int              `json:"gold"`
	Items    []TradeOfferItem `json:"items"`
}

// CreateTradeRequest is the payload for opening a negotiation with another player.
type CreateTradeRequest struct {
	Responder string `json:"responder"`
}

// OfferUpdateRequest carries a full offer snapshot together with the client's
// monotonically increasing edit counter. Snapshots make pushes idempotent;
// the counter makes them safe to reorder.
type OfferUpdateRequest struct {
	Offer   TradeOffer `json:"offer"`
	Counter uint64     `json:"counter"`
}

// TradeView is the read-only projection of a negotiation broadcast to both
// participants after every accepted mutation.
type TradeView struct {
	ID             uuid.UUID  `json:"id"`
	InitiatorID    int32      `json:"initiatorId"`
	ResponderID    int32      `json:"responderId"`
	InitiatorLabel string     `json:"initiatorLabel"`
	ResponderLabel string     `json:"responderLabel"`
	FromOffer      TradeOffer `json:"fromOffer"`
	ToOffer        TradeOffer `json:"toOffer"`
	FromAccepted   bool       `json:"fromAccepted"`
	ToAccepted     bool       `json:"toAccepted"`
	Status         string     `json:"status"`
	Notice         string     `json:"notice,omitempty"`
}

// StashItem represents an entry in a warband's stash.
type StashItem struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	UnitCost int    `json:"unitCost"`
}

// Inventory is a point-in-time read of a player's tradable resources,
// used to clamp offer drafts. It is never mutated by validation.
type Inventory struct {
	Gold  int
	Items map[int32]StashItem
}

// AvailableGold reports the gold an offer may commit.
func (inv *Inventory) AvailableGold() int {
	return inv.Gold
}

// AvailableQuantity reports how many units of an item an offer may commit.
func (inv *Inventory) AvailableQuantity(itemID int32) int {
	return inv.Items[itemID].Quantity
}

// SellItemRequest is the payload for selling stash items outside any trade.
type SellItemRequest struct {
	ItemID   int32 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

// SettlementDetail describes one side's view of a completed trade.
type SettlementDetail struct {
	Partner       string           `json:"partner"`
	GoldGiven     int              `json:"goldGiven"`
	GoldReceived  int              `json:"goldReceived"`
	ItemsGiven    []TradeOfferItem `json:"itemsGiven"`
	ItemsReceived []TradeOfferItem `json:"itemsReceived"`
}

// TradeHistory represents the settlement ledger entries for a player.
type TradeHistory struct {
	Settled []SettlementDetail `json:"settled"`
}

// WarbandInfoResponse represents the response payload for the /api/info endpoint.
// It contains the warband's current gold, stash contents, and trade history.
type WarbandInfoResponse struct {
	Warband      string       `json:"warband"`
	Gold         int          `json:"gold"`
	Stash        []StashItem  `json:"stash"`
	TradeHistory TradeHistory `json:"tradeHistory"`
}
