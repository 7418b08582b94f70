package service

import (
	"errors"
	"net/http"
	"time"

	"trade_post/internal/pkg/auth"
	"trade_post/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Maximum time to wait for a pong from the subscriber.
	pongWait = 60 * time.Second

	// Ping the subscriber at this interval to keep the connection alive.
	pingPeriod = (pongWait * 9) / 10

	// Deadline for a single write to the subscriber.
	writeWait = 10 * time.Second

	// Subscribers never send meaningful payloads; anything larger is abuse.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// tradeStreamHandler upgrades the connection and streams the merged
// TradeRequest projection to the participant after every accepted mutation.
// The stream ends when the request reaches a terminal state or the client
// disconnects; offer edits go through the REST push path, not this socket.
func (handlers *handlers) tradeStreamHandler(res http.ResponseWriter, req *http.Request) {
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

	updates, cancel, err := handlers.app.Store().Subscribe(requestID, playerID)
	if err != nil {
		switch {
		case errors.Is(err, trade.ErrRequestNotFound):
			writeErrorResponse(res, "trade request not found", http.StatusNotFound)
		case errors.Is(err, trade.ErrNotParticipant):
			writeErrorResponse(res, "player is not a participant of this trade", http.StatusForbidden)
		case errors.Is(err, trade.ErrAlreadyFinalized):
			writeErrorResponse(res, "this trade is no longer active", http.StatusConflict)
		default:
			writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(res, req, nil)
	if err != nil {
		cancel()
		handlers.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	defer cancel()

	// Read pump: drain control frames and detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					handlers.log.Debug("trade stream read ended", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view, open := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				// Terminal state reached; say goodbye cleanly.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "trade finalized"))
				return
			}
			if err := conn.WriteJSON(view); err != nil {
				handlers.log.Debug("trade stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
