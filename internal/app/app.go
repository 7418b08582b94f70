// Package app provides the core application logic for the trade post.
// It handles player authentication, trade negotiation, stash sales, and
// warband information retrieval. The package bridges the HTTP layer to the
// negotiation store and the storage layer, and uses the auth package for
// token generation.
package app

import (
	"context"
	"errors"

	"trade_post/internal/models"
	"trade_post/internal/negotiation"
	"trade_post/internal/pkg/auth"
	"trade_post/internal/pkg/logger"
	"trade_post/internal/storage"

	"github.com/google/uuid"
)

// Predefined errors for missing required parameters in requests.
var (
	// ErrMissingUsernameOrPassword indicates that either the username or password is not provided.
	ErrMissingUsernameOrPassword = errors.New("app: missing username or password")
	// ErrMissingResponder indicates that no trade partner was named.
	ErrMissingResponder = errors.New("app: missing responder")
	// ErrMissingItemOrQuantity indicates a sale without an item or with a non-positive quantity.
	ErrMissingItemOrQuantity = errors.New("app: missing item or quantity")
)

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	db    storage.Storage
	store *negotiation.Store
	log   *logger.Logger
}

// NewApp creates and returns a new instance of App with the provided dependencies.
func NewApp(db storage.Storage, store *negotiation.Store, log *logger.Logger) *App {
	return &App{db: db, store: store, log: log}
}

// Store exposes the negotiation store for the subscription transport.
func (app *App) Store() *negotiation.Store {
	return app.store
}

// ProcessAuth handles player authentication by verifying credentials and generating a token.
// If the player does not exist, it registers a new player.
func (app *App) ProcessAuth(ctx context.Context, req models.AuthRequest) (string, error) {
	if req.Username == "" || req.Password == "" {
		return "", ErrMissingUsernameOrPassword
	}

	player := &models.Player{
		Username: req.Username,
		Password: req.Password,
	}

	player, err := app.db.CheckPlayer(ctx, player)
	if err != nil {
		return "", err
	}

	if player.ID == 0 {
		player, err = app.db.CreatePlayer(ctx, player)
		if err != nil {
			return "", err
		}
	}

	return auth.GenerateToken(player.ID)
}

// ProcessCreateTrade opens a negotiation with the named responder.
func (app *App) ProcessCreateTrade(ctx context.Context, playerID int32, req models.CreateTradeRequest) (models.TradeView, error) {
	if req.Responder == "" {
		return models.TradeView{}, ErrMissingResponder
	}

	responder, err := app.db.GetPlayerID(ctx, req.Responder)
	if err != nil {
		return models.TradeView{}, err
	}

	return app.store.Create(ctx, playerID, responder.ID)
}

// ProcessUpdateOffer pushes a side's offer draft into the negotiation store.
func (app *App) ProcessUpdateOffer(ctx context.Context, playerID int32, requestID uuid.UUID, req models.OfferUpdateRequest) (models.TradeView, error) {
	return app.store.UpdateOffer(ctx, requestID, playerID, req.Offer, req.Counter)
}

// ProcessLock accepts the caller's current offer; settlement may run as a side effect.
func (app *App) ProcessLock(ctx context.Context, playerID int32, requestID uuid.UUID) (models.TradeView, error) {
	return app.store.Lock(ctx, requestID, playerID)
}

// ProcessCancel withdraws the request on behalf of either party.
func (app *App) ProcessCancel(ctx context.Context, playerID int32, requestID uuid.UUID) (models.TradeView, error) {
	return app.store.Cancel(ctx, requestID, playerID)
}

// ProcessGetTrade returns the caller's current projection of the request.
func (app *App) ProcessGetTrade(playerID int32, requestID uuid.UUID) (models.TradeView, error) {
	return app.store.Get(requestID, playerID)
}

// ProcessSell sells stash items outside any negotiation by delegating to the storage layer.
func (app *App) ProcessSell(ctx context.Context, playerID int32, req models.SellItemRequest) error {
	if req.ItemID == 0 || req.Quantity <= 0 {
		return ErrMissingItemOrQuantity
	}
	return app.db.SellItem(ctx, playerID, req.ItemID, req.Quantity)
}

// ProcessInfo retrieves the caller's warband summary: gold, stash, trade history.
func (app *App) ProcessInfo(ctx context.Context, playerID int32) (*models.WarbandInfoResponse, error) {
	return app.db.GetWarbandInfo(ctx, playerID)
}
