// Package negotiation implements the authoritative server-side state for
// inter-player trade requests: both offers, both acceptance flags, and the
// overall status. All client views are projections of this store. Mutations
// on one request are serialized by a per-request mutex so a lock and a
// concurrent offer push cannot interleave, and the "both sides locked,
// settle now" check is atomic with the lock transition that triggers it.
package negotiation

import (
	"context"
	"errors"
	"sync"

	"trade_post/internal/models"
	"trade_post/internal/pkg/logger"
	"trade_post/internal/storage"
	"trade_post/internal/trade"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// noticeUnlocked is broadcast to both parties when settlement-time
// re-validation fails and the most recently locked side is reopened.
const noticeUnlocked = "trade could not be completed, offer unlocked"

// subscriberBuffer bounds the per-subscriber broadcast queue. A subscriber
// that falls this far behind misses intermediate views; the latest state is
// always available via Get.
const subscriberBuffer = 16

// request holds one negotiation's authoritative state.
// All fields below mu are guarded by it.
type request struct {
	mu sync.Mutex

	id             uuid.UUID
	initiatorID    int32
	responderID    int32
	initiatorLabel string
	responderLabel string

	fromOffer    models.TradeOffer
	toOffer      models.TradeOffer
	fromAccepted bool
	toAccepted   bool
	fromCounter  uint64
	toCounter    uint64
	status       trade.Status
	lastLocked   trade.Side

	listeners    map[int]chan models.TradeView
	nextListener int
}

// Store is the negotiation store. Requests are independent units of
// concurrency; operations on different requests never contend.
type Store struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*request

	db  storage.Storage
	log *logger.Logger
}

// NewStore creates a negotiation store backed by the given storage for
// inventory reads and settlement.
func NewStore(db storage.Storage, log *logger.Logger) *Store {
	return &Store{
		requests: make(map[uuid.UUID]*request),
		db:       db,
		log:      log,
	}
}

// Create opens a negotiation between two players. Both must have an active
// warband; a player cannot trade with themselves.
func (store *Store) Create(ctx context.Context, initiatorID, responderID int32) (models.TradeView, error) {
	if initiatorID == responderID {
		return models.TradeView{}, trade.ErrSelfTrade
	}

	initiatorWarband, err := store.db.GetActiveWarband(ctx, initiatorID)
	if err != nil {
		return models.TradeView{}, err
	}
	responderWarband, err := store.db.GetActiveWarband(ctx, responderID)
	if err != nil {
		return models.TradeView{}, err
	}

	req := &request{
		id:             uuid.New(),
		initiatorID:    initiatorID,
		responderID:    responderID,
		initiatorLabel: initiatorWarband.Name,
		responderLabel: responderWarband.Name,
		status:         trade.StatusOpen,
		listeners:      make(map[int]chan models.TradeView),
	}

	store.mu.Lock()
	store.requests[req.id] = req
	store.mu.Unlock()

	store.log.Info("trade request created",
		zap.String("request", req.id.String()),
		zap.Int32("initiator", initiatorID),
		zap.Int32("responder", responderID))

	req.mu.Lock()
	defer req.mu.Unlock()
	return req.view(""), nil
}

func (store *Store) find(id uuid.UUID) (*request, error) {
	store.mu.RLock()
	req, ok := store.requests[id]
	store.mu.RUnlock()
	if !ok {
		return nil, trade.ErrRequestNotFound
	}
	return req, nil
}

// sideOf resolves which side of the request the player controls.
func (req *request) sideOf(playerID int32) (trade.Side, error) {
	switch playerID {
	case req.initiatorID:
		return trade.SideInitiator, nil
	case req.responderID:
		return trade.SideResponder, nil
	default:
		return "", trade.ErrNotParticipant
	}
}

func (req *request) offerOf(side trade.Side) *models.TradeOffer {
	if side == trade.SideInitiator {
		return &req.fromOffer
	}
	return &req.toOffer
}

func (req *request) acceptedOf(side trade.Side) *bool {
	if side == trade.SideInitiator {
		return &req.fromAccepted
	}
	return &req.toAccepted
}

func (req *request) counterOf(side trade.Side) *uint64 {
	if side == trade.SideInitiator {
		return &req.fromCounter
	}
	return &req.toCounter
}

// view builds the read-only projection. Callers must hold req.mu.
func (req *request) view(notice string) models.TradeView {
	return models.TradeView{
		ID:             req.id,
		InitiatorID:    req.initiatorID,
		ResponderID:    req.responderID,
		InitiatorLabel: req.initiatorLabel,
		ResponderLabel: req.responderLabel,
		FromOffer:      trade.CloneOffer(req.fromOffer),
		ToOffer:        trade.CloneOffer(req.toOffer),
		FromAccepted:   req.fromAccepted,
		ToAccepted:     req.toAccepted,
		Status:         string(req.status),
		Notice:         notice,
	}
}

// broadcast fans the current projection out to every subscriber.
// Sends never block; a subscriber with a full queue misses this view.
// Callers must hold req.mu.
func (req *request) broadcast(notice string) {
	view := req.view(notice)
	for _, listener := range req.listeners {
		select {
		case listener <- view:
		default:
		}
	}
}

// closeListeners ends every subscription after a terminal transition.
// Callers must hold req.mu.
func (req *request) closeListeners() {
	for id, listener := range req.listeners {
		close(listener)
		delete(req.listeners, id)
	}
}

// UpdateOffer validates and stores a side's offer draft. The push is a full
// snapshot keyed by the client's edit counter: a counter at or below the
// stored one is discarded (last write wins per side), a locked side is
// rejected as a no-op with trade.ErrOfferLocked, and a clamped draft equal
// to the stored offer is rejected with trade.ErrUnchangedOffer so retries
// are safe. The returned view reflects the stored state in every case.
func (store *Store) UpdateOffer(ctx context.Context, id uuid.UUID, playerID int32, draft models.TradeOffer, counter uint64) (models.TradeView, error) {
	req, err := store.find(id)
	if err != nil {
		return models.TradeView{}, err
	}

	req.mu.Lock()
	defer req.mu.Unlock()

	side, err := req.sideOf(playerID)
	if err != nil {
		return models.TradeView{}, err
	}
	if req.status.Final() {
		return req.view(""), trade.ErrAlreadyFinalized
	}
	if *req.acceptedOf(side) {
		return req.view(""), trade.ErrOfferLocked
	}
	if counter <= *req.counterOf(side) {
		return req.view(""), trade.ErrStaleCounter
	}

	inv, err := store.db.LoadInventory(ctx, playerID)
	if err != nil {
		return req.view(""), err
	}

	clamped := trade.ClampOffer(draft, inv)

	// Acknowledge the counter even when the offer is unchanged: the push was
	// seen and ordered, it just stores and broadcasts nothing. Otherwise a
	// reordered earlier push could slip in under a later no-op.
	*req.counterOf(side) = counter
	if trade.EqualOffers(clamped, *req.offerOf(side)) {
		return req.view(""), trade.ErrUnchangedOffer
	}

	*req.offerOf(side) = trade.CloneOffer(clamped)
	req.broadcast("")

	return req.view(""), nil
}

// Lock accepts a side's current offer, freezing it. When both sides are
// locked the settlement executor runs immediately, atomically with the
// transition. A lock from an already-locked side is a no-op on the flags
// but re-runs the both-locked check, which is the retry path after a
// transfer failure. Settled or cancelled requests reject with
// trade.ErrAlreadyFinalized.
func (store *Store) Lock(ctx context.Context, id uuid.UUID, playerID int32) (models.TradeView, error) {
	req, err := store.find(id)
	if err != nil {
		return models.TradeView{}, err
	}

	req.mu.Lock()
	defer req.mu.Unlock()

	side, err := req.sideOf(playerID)
	if err != nil {
		return models.TradeView{}, err
	}
	if req.status.Final() {
		return req.view(""), trade.ErrAlreadyFinalized
	}

	if !*req.acceptedOf(side) {
		*req.acceptedOf(side) = true
		req.lastLocked = side
		req.status = trade.StatusLocked
		store.log.Info("offer locked",
			zap.String("request", req.id.String()),
			zap.String("side", string(side)))
	}

	if !(req.fromAccepted && req.toAccepted) {
		req.broadcast("")
		return req.view(""), nil
	}

	return store.settleLocked(ctx, req)
}

// settleLocked runs the settlement executor for a fully locked request.
// Callers must hold req.mu.
func (store *Store) settleLocked(ctx context.Context, req *request) (models.TradeView, error) {
	rec := storage.SettlementRecord{
		RequestID:   req.id,
		InitiatorID: req.initiatorID,
		ResponderID: req.responderID,
		FromOffer:   trade.CloneOffer(req.fromOffer),
		ToOffer:     trade.CloneOffer(req.toOffer),
	}

	err := store.db.SettleTrade(ctx, rec)
	switch {
	case err == nil:
		req.status = trade.StatusSettled
		store.log.Info("trade settled", zap.String("request", req.id.String()))
		req.broadcast("")
		view := req.view("")
		req.closeListeners()
		return view, nil

	case errors.Is(err, trade.ErrStaleInventory):
		// Never strand the request in locked/locked with no path forward:
		// reopen the most recently locked side and tell both clients. The
		// counterpart keeps its lock, so the request stays locked.
		*req.acceptedOf(req.lastLocked) = false
		if *req.acceptedOf(req.lastLocked.Other()) {
			req.status = trade.StatusLocked
		} else {
			req.status = trade.StatusOpen
		}
		store.log.Warn("settlement re-validation failed, side unlocked",
			zap.String("request", req.id.String()),
			zap.String("side", string(req.lastLocked)))
		req.broadcast(noticeUnlocked)
		return req.view(noticeUnlocked), trade.ErrStaleInventory

	default:
		// Transfer failure with full rollback underneath: stay locked/locked
		// so only a settle retry is possible, never re-editing.
		store.log.Error("settlement transfer failed",
			zap.String("request", req.id.String()),
			zap.Error(err))
		return req.view(""), err
	}
}

// Cancel withdraws the request. Either party may cancel unilaterally at any
// time before settlement; later pushes and locks get trade.ErrAlreadyFinalized.
func (store *Store) Cancel(ctx context.Context, id uuid.UUID, playerID int32) (models.TradeView, error) {
	req, err := store.find(id)
	if err != nil {
		return models.TradeView{}, err
	}

	req.mu.Lock()
	defer req.mu.Unlock()

	if _, err := req.sideOf(playerID); err != nil {
		return models.TradeView{}, err
	}
	if req.status.Final() {
		return req.view(""), trade.ErrAlreadyFinalized
	}

	req.status = trade.StatusCancelled
	req.fromAccepted = false
	req.toAccepted = false
	store.log.Info("trade request cancelled",
		zap.String("request", req.id.String()),
		zap.Int32("by", playerID))
	req.broadcast("")
	view := req.view("")
	req.closeListeners()
	return view, nil
}

// Get returns the current projection for a participant.
func (store *Store) Get(id uuid.UUID, playerID int32) (models.TradeView, error) {
	req, err := store.find(id)
	if err != nil {
		return models.TradeView{}, err
	}

	req.mu.Lock()
	defer req.mu.Unlock()

	if _, err := req.sideOf(playerID); err != nil {
		return models.TradeView{}, err
	}
	return req.view(""), nil
}

// Subscribe registers a listener for a participant. Every accepted mutation
// broadcasts the merged projection to both sides. The returned cancel func
// must be called when the listener goes away; the channel closes when the
// request reaches a terminal state.
func (store *Store) Subscribe(id uuid.UUID, playerID int32) (<-chan models.TradeView, func(), error) {
	req, err := store.find(id)
	if err != nil {
		return nil, nil, err
	}

	req.mu.Lock()
	defer req.mu.Unlock()

	if _, err := req.sideOf(playerID); err != nil {
		return nil, nil, err
	}
	if req.status.Final() {
		return nil, nil, trade.ErrAlreadyFinalized
	}

	listener := make(chan models.TradeView, subscriberBuffer)
	listenerID := req.nextListener
	req.nextListener++
	req.listeners[listenerID] = listener

	// Prime the subscriber with the current state.
	listener <- req.view("")

	cancel := func() {
		req.mu.Lock()
		defer req.mu.Unlock()
		if _, ok := req.listeners[listenerID]; ok {
			close(listener)
			delete(req.listeners, listenerID)
		}
	}
	return listener, cancel, nil
}
