// Package service contains HTTP handler implementations for the trade post API endpoints.
// It orchestrates request parsing, calls the underlying business logic in the app package,
// maps the trade error taxonomy and database-specific errors to HTTP statuses, and writes
// appropriate HTTP responses.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"trade_post/internal/app"
	"trade_post/internal/models"
	"trade_post/internal/pkg/auth"
	"trade_post/internal/pkg/logger"
	"trade_post/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	pgconn "github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	pgx_pgconn "github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const requestTimeout = 10 * time.Second

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

// authHandler handles player authentication requests.
// It reads the request body, unmarshals it into an AuthRequest,
// invokes the authentication process, and returns a JSON response with a token.
func (handlers *handlers) authHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var authRequest models.AuthRequest
	var authResponse models.AuthResponse

	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	if err = json.Unmarshal(requestBody, &authRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	var pgError *pgconn.PgError
	authResponse.Token, err = handlers.app.ProcessAuth(ctx, authRequest)
	if err != nil {
		if ok := errors.As(err, &pgError); ok && pgError.Code == pgerrcode.UniqueViolation {
			writeErrorResponse(res, "player with provided name already exists", http.StatusUnauthorized)
			return
		}

		if errors.Is(err, app.ErrMissingUsernameOrPassword) {
			writeErrorResponse(res, "missing username or password", http.StatusBadRequest)
			return
		}

		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			writeErrorResponse(res, "incorrect password", http.StatusUnauthorized)
			return
		}
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(res, authResponse, http.StatusOK)
}

// createTradeHandler opens a negotiation with the responder named in the body.
func (handlers *handlers) createTradeHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest models.CreateTradeRequest
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	if err = json.Unmarshal(requestBody, &createRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := handlers.app.ProcessCreateTrade(ctx, playerID, createRequest)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingResponder):
			writeErrorResponse(res, "missing responder", http.StatusBadRequest)
		case errors.Is(err, sql.ErrNoRows):
			writeErrorResponse(res, "unknown responder", http.StatusBadRequest)
		case errors.Is(err, trade.ErrSelfTrade):
			writeErrorResponse(res, "cannot trade with yourself", http.StatusBadRequest)
		case errors.Is(err, trade.ErrNoActiveWarband):
			writeErrorResponse(res, "responder has no active warband", http.StatusBadRequest)
		default:
			writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(res, view, http.StatusCreated)
}

// getTradeHandler returns the caller's current projection of a trade request.
func (handlers *handlers) getTradeHandler(res http.ResponseWriter, req *http.Request) {
	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(req, "requestID"))
	if err != nil {
		writeErrorResponse(res, "invalid request id", http.StatusBadRequest)
		return
	}

	view, err := handlers.app.ProcessGetTrade(playerID, requestID)
	if err != nil {
		writeTradeError(res, view, err)
		return
	}

	writeJSONResponse(res, view, http.StatusOK)
}

// updateOfferHandler pushes a full offer snapshot for the caller's side.
// Locked-side edits, unchanged offers, and stale counters are no-ops that
// return the stored state rather than hard failures.
func (handlers *handlers) updateOfferHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(req, "requestID"))
	if err != nil {
		writeErrorResponse(res, "invalid request id", http.StatusBadRequest)
		return
	}

	var updateRequest models.OfferUpdateRequest
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	if err = json.Unmarshal(requestBody, &updateRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := handlers.app.ProcessUpdateOffer(ctx, playerID, requestID, updateRequest)
	if err != nil {
		switch {
		case errors.Is(err, trade.ErrOfferLocked):
			view.Notice = "offer is locked"
			writeJSONResponse(res, view, http.StatusOK)
		case errors.Is(err, trade.ErrUnchangedOffer), errors.Is(err, trade.ErrStaleCounter):
			writeJSONResponse(res, view, http.StatusOK)
		default:
			writeTradeError(res, view, err)
		}
		return
	}

	writeJSONResponse(res, view, http.StatusOK)
}

// lockHandler accepts the caller's offer. Settlement runs as a side effect
// once both sides are locked.
func (handlers *handlers) lockHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(req, "requestID"))
	if err != nil {
		writeErrorResponse(res, "invalid request id", http.StatusBadRequest)
		return
	}

	view, err := handlers.app.ProcessLock(ctx, playerID, requestID)
	if err != nil {
		if errors.Is(err, trade.ErrStaleInventory) {
			// The side that triggered settlement has been unlocked; the view
			// carries the notice for both parties.
			writeJSONResponse(res, view, http.StatusConflict)
			return
		}
		writeTradeError(res, view, err)
		return
	}

	writeJSONResponse(res, view, http.StatusOK)
}

// cancelHandler withdraws the trade request on behalf of the caller.
func (handlers *handlers) cancelHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(req, "requestID"))
	if err != nil {
		writeErrorResponse(res, "invalid request id", http.StatusBadRequest)
		return
	}

	view, err := handlers.app.ProcessCancel(ctx, playerID, requestID)
	if err != nil {
		writeTradeError(res, view, err)
		return
	}

	writeJSONResponse(res, view, http.StatusOK)
}

// sellHandler processes a stash sale outside any negotiation.
func (handlers *handlers) sellHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	var sellRequest models.SellItemRequest
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}
	if err = json.Unmarshal(requestBody, &sellRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	var pgError *pgx_pgconn.PgError
	err = handlers.app.ProcessSell(ctx, playerID, sellRequest)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingItemOrQuantity):
			writeErrorResponse(res, "missing item or quantity", http.StatusBadRequest)
		case errors.Is(err, trade.ErrNoActiveWarband):
			writeErrorResponse(res, "player has no active warband", http.StatusBadRequest)
		case errors.Is(err, sql.ErrNoRows):
			writeErrorResponse(res, "invalid item provided", http.StatusBadRequest)
		case errors.As(err, &pgError) && pgError.Code == pgerrcode.CheckViolation:
			writeErrorResponse(res, "not enough items in stash to sell", http.StatusBadRequest)
		default:
			writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	res.WriteHeader(http.StatusOK)
}

// infoHandler retrieves the caller's warband summary.
func (handlers *handlers) infoHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	playerID, ok := auth.PlayerID(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := handlers.app.ProcessInfo(ctx, playerID)
	if err != nil {
		if errors.Is(err, trade.ErrNoActiveWarband) {
			writeErrorResponse(res, "player has no active warband", http.StatusBadRequest)
			return
		}
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(res, info, http.StatusOK)
}

// writeTradeError maps the shared trade error taxonomy to HTTP statuses.
func writeTradeError(res http.ResponseWriter, view models.TradeView, err error) {
	switch {
	case errors.Is(err, trade.ErrRequestNotFound):
		writeErrorResponse(res, "trade request not found", http.StatusNotFound)
	case errors.Is(err, trade.ErrNotParticipant):
		writeErrorResponse(res, "player is not a participant of this trade", http.StatusForbidden)
	case errors.Is(err, trade.ErrAlreadyFinalized):
		writeErrorResponse(res, "this trade is no longer active", http.StatusConflict)
	case errors.Is(err, trade.ErrNoActiveWarband):
		writeErrorResponse(res, "player has no active warband", http.StatusBadRequest)
	case errors.Is(err, trade.ErrSettlementTransfer):
		// Full rollback took place; the caller may retry the lock.
		writeErrorResponse(res, "settlement failed, no goods moved; retry", http.StatusInternalServerError)
	default:
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONResponse(res http.ResponseWriter, payload any, statusCode int) {
	result, err := json.Marshal(payload)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
