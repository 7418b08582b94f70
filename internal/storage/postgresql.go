// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Storage interface along with a PostgreSQL implementation that manages player
// authentication, warband inventories, stash sales, and the atomic settlement of locked trades.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trade_post/internal/models"
	"trade_post/internal/pkg/logger"
	"trade_post/internal/pkg/security"
	"trade_post/internal/trade"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	createPlayerQuery       = `INSERT INTO content.players (username, password_hash) VALUES ($1, $2) RETURNING id;`
	checkPlayerQuery        = `SELECT id, password_hash FROM content.players WHERE username = $1;`
	getPlayerIDQuery        = `SELECT id FROM content.players WHERE username = $1;`
	getActiveWarbandQuery   = `SELECT id, warband_name, gold FROM content.warbands WHERE player_id = $1 AND active;`
	lockWarbandQuery        = `SELECT id, warband_name, gold FROM content.warbands WHERE player_id = $1 AND active FOR UPDATE;`
	getStashQuery           = `SELECT s.item_id, i.item_name, s.quantity, i.cost FROM content.stash s JOIN content.items i ON s.item_id = i.id WHERE s.warband_id = $1 AND s.quantity > 0;`
	updateWarbandGoldQuery  = `UPDATE content.warbands SET gold = gold + $1, updated_at = NOW() WHERE id = $2;`
	adjustStashQuery        = `INSERT INTO content.stash (warband_id, item_id, quantity) VALUES ($1, $2, $3) ON CONFLICT (warband_id, item_id) DO UPDATE SET quantity = content.stash.quantity + EXCLUDED.quantity;`
	getItemCostQuery        = `SELECT item_name, cost FROM content.items WHERE id = $1;`
	insertSettlementQuery   = `INSERT INTO content.trade_settlements (request_id, initiator_id, responder_id, gold_from, gold_to, trader_from, trader_to) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;`
	insertSettledItemQuery  = `INSERT INTO content.trade_settlement_items (settlement_id, giver_id, item_id, item_name, quantity, unit_cost) VALUES ($1, $2, $3, $4, $5, $6);`
	getSettlementsQuery     = `SELECT s.id, s.initiator_id, s.responder_id, pi.username, pr.username, s.gold_from, s.gold_to FROM content.trade_settlements s JOIN content.players pi ON s.initiator_id = pi.id JOIN content.players pr ON s.responder_id = pr.id WHERE s.initiator_id = $1 OR s.responder_id = $1 ORDER BY s.created_at DESC;`
	getSettlementItemsQuery = `SELECT giver_id, item_id, item_name, quantity, unit_cost FROM content.trade_settlement_items WHERE settlement_id = $1;`
)

// SettlementRecord is the input to SettleTrade: the mutually locked offers
// and the parties exchanging them.
type SettlementRecord struct {
	RequestID   uuid.UUID
	InitiatorID int32
	ResponderID int32
	FromOffer   models.TradeOffer
	ToOffer     models.TradeOffer
}

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the database connection.
	Close()

	// Authentication methods.
	CheckPlayer(ctx context.Context, player *models.Player) (*models.Player, error)
	CreatePlayer(ctx context.Context, player *models.Player) (*models.Player, error)
	GetPlayerID(ctx context.Context, username string) (*models.Player, error)

	// Roster and inventory reads. LoadInventory is read-only; inventories are
	// only mutated by SellItem and SettleTrade.
	GetActiveWarband(ctx context.Context, playerID int32) (*models.Warband, error)
	LoadInventory(ctx context.Context, playerID int32) (*models.Inventory, error)

	// Transactional operations.
	SellItem(ctx context.Context, playerID int32, itemID int32, quantity int) error
	SettleTrade(ctx context.Context, rec SettlementRecord) error

	// Warband summary for the info endpoint.
	GetWarbandInfo(ctx context.Context, playerID int32) (*models.WarbandInfoResponse, error)
}

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB        // Connection to the database.
	log *logger.Logger // Logger for recording events and errors.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// CheckPlayer verifies the player's credentials by retrieving the player's ID and encrypted password,
// then checking the provided password against the stored hash.
func (postgresql *PostgreSQL) CheckPlayer(ctx context.Context, player *models.Player) (*models.Player, error) {
	var encryptedPassword string

	err := postgresql.db.QueryRowContext(ctx, checkPlayerQuery, player.Username).Scan(&player.ID, &encryptedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return player, nil
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query checkPlayerQuery: %s", err)
		return player, err
	}

	err = security.CheckPassword(encryptedPassword, player.Password)
	if err != nil {
		postgresql.log.Sugar().Errorf(err.Error())
		return player, err
	}

	return player, nil
}

// CreatePlayer registers a new player by hashing the password and inserting the player into the database.
func (postgresql *PostgreSQL) CreatePlayer(ctx context.Context, player *models.Player) (*models.Player, error) {
	encryptedPassword := security.HashPassword(player.Password)

	err := postgresql.db.QueryRowContext(ctx, createPlayerQuery, player.Username, encryptedPassword).Scan(&player.ID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createPlayerQuery: %s", err)
		return player, err
	}
	return player, err
}

// GetPlayerID retrieves a player's ID given their username.
func (postgresql *PostgreSQL) GetPlayerID(ctx context.Context, username string) (*models.Player, error) {
	player := &models.Player{
		Username: username,
	}

	err := postgresql.db.QueryRowContext(ctx, getPlayerIDQuery, player.Username).Scan(&player.ID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getPlayerIDQuery: %s", err)
		return player, err
	}

	return player, nil
}

// GetActiveWarband retrieves the player's active warband.
// It returns trade.ErrNoActiveWarband when the player has no tradable roster.
func (postgresql *PostgreSQL) GetActiveWarband(ctx context.Context, playerID int32) (*models.Warband, error) {
	warband := &models.Warband{PlayerID: playerID}

	err := postgresql.db.QueryRowContext(ctx, getActiveWarbandQuery, playerID).Scan(&warband.ID, &warband.Name, &warband.Gold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trade.ErrNoActiveWarband
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getActiveWarbandQuery: %s", err)
		return nil, err
	}

	return warband, nil
}

// getStash loads the non-empty stash lines of a warband. Runs either inside
// a transaction or directly on the pool depending on the querier passed in.
func (postgresql *PostgreSQL) getStash(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, warbandID int32) (map[int32]models.StashItem, error) {
	rows, err := q.QueryContext(ctx, getStashQuery, warbandID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getStashQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	stash := make(map[int32]models.StashItem)
	for rows.Next() {
		item := models.StashItem{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.UnitCost); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan stash line in getStash: %s", err)
			return nil, err
		}
		stash[item.ID] = item
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in getStash: %s", err)
		return stash, err
	}

	return stash, nil
}

// LoadInventory reads the player's current gold and stash quantities.
// The read is validation-only and has no side effect on the inventory.
func (postgresql *PostgreSQL) LoadInventory(ctx context.Context, playerID int32) (*models.Inventory, error) {
	warband, err := postgresql.GetActiveWarband(ctx, playerID)
	if err != nil {
		return nil, err
	}

	stash, err := postgresql.getStash(ctx, postgresql.db, warband.ID)
	if err != nil {
		return nil, err
	}

	return &models.Inventory{Gold: warband.Gold, Items: stash}, nil
}

// lockWarband loads a warband row FOR UPDATE inside a transaction.
func (postgresql *PostgreSQL) lockWarband(ctx context.Context, tx *sql.Tx, playerID int32) (*models.Warband, error) {
	warband := &models.Warband{PlayerID: playerID}

	err := tx.QueryRowContext(ctx, lockWarbandQuery, playerID).Scan(&warband.ID, &warband.Name, &warband.Gold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trade.ErrNoActiveWarband
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query lockWarbandQuery: %s", err)
		return nil, err
	}

	return warband, nil
}

// updateGold adjusts a warband's gold balance inside a transaction.
// The gold >= 0 check constraint is the overdraft backstop.
func (postgresql *PostgreSQL) updateGold(ctx context.Context, tx *sql.Tx, warbandID int32, delta int) error {
	if delta == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, updateWarbandGoldQuery, delta, warbandID); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateWarbandGoldQuery: %s", err)
		return err
	}
	return nil
}

// adjustStash adjusts a stash line quantity inside a transaction.
// The quantity >= 0 check constraint is the backstop against over-debit.
func (postgresql *PostgreSQL) adjustStash(ctx context.Context, tx *sql.Tx, warbandID int32, itemID int32, delta int) error {
	if delta == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, adjustStashQuery, warbandID, itemID, delta); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query adjustStashQuery: %s", err)
		return err
	}
	return nil
}

// SellItem sells stash items back to the campaign market at unit cost.
// It decrements the stash line and credits the warband's gold within one transaction.
func (postgresql *PostgreSQL) SellItem(ctx context.Context, playerID int32, itemID int32, quantity int) error {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	warband, err := postgresql.lockWarband(ctx, tx, playerID)
	if err != nil {
		return err
	}

	var itemName string
	var cost int
	if err := tx.QueryRowContext(ctx, getItemCostQuery, itemID).Scan(&itemName, &cost); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getItemCostQuery: %s", err)
		return err
	}

	if err := postgresql.adjustStash(ctx, tx, warband.ID, itemID, -quantity); err != nil {
		return err
	}

	if err := postgresql.updateGold(ctx, tx, warband.ID, cost*quantity); err != nil {
		return err
	}

	return tx.Commit()
}

// SettleTrade atomically executes a mutually locked trade. Both warband rows
// are locked in a fixed order, both offers are re-validated against the
// current inventories, and all four transfers (gold and items, both
// directions) plus the ledger rows happen in one transaction. A re-validation
// failure rolls back with trade.ErrStaleInventory and no inventory change;
// any other failure rolls back and is reported as a retryable transfer error.
func (postgresql *PostgreSQL) SettleTrade(ctx context.Context, rec SettlementRecord) error {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
	}
	defer tx.Rollback()

	// Lock in ascending player-ID order so two settlements touching the same
	// pair cannot deadlock.
	first, second := rec.InitiatorID, rec.ResponderID
	if second < first {
		first, second = second, first
	}
	warbands := make(map[int32]*models.Warband, 2)
	for _, playerID := range []int32{first, second} {
		warband, err := postgresql.lockWarband(ctx, tx, playerID)
		if err != nil {
			if errors.Is(err, trade.ErrNoActiveWarband) {
				return trade.ErrStaleInventory
			}
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
		warbands[playerID] = warband
	}

	// Mandatory re-validation: the offers were captured at different times
	// under concurrent editing, so current inventories are the only truth.
	for _, check := range []struct {
		playerID int32
		offer    models.TradeOffer
	}{
		{rec.InitiatorID, rec.FromOffer},
		{rec.ResponderID, rec.ToOffer},
	} {
		stash, err := postgresql.getStash(ctx, tx, warbands[check.playerID].ID)
		if err != nil {
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
		inv := &models.Inventory{Gold: warbands[check.playerID].Gold, Items: stash}
		if !trade.Satisfiable(check.offer, inv) {
			return trade.ErrStaleInventory
		}
	}

	fromWarband := warbands[rec.InitiatorID]
	toWarband := warbands[rec.ResponderID]

	if err := postgresql.updateGold(ctx, tx, fromWarband.ID, rec.ToOffer.Gold-rec.FromOffer.Gold); err != nil {
		return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
	}
	if err := postgresql.updateGold(ctx, tx, toWarband.ID, rec.FromOffer.Gold-rec.ToOffer.Gold); err != nil {
		return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
	}

	for _, item := range rec.FromOffer.Items {
		if err := postgresql.adjustStash(ctx, tx, fromWarband.ID, item.ID, -item.Quantity); err != nil {
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
		if err := postgresql.adjustStash(ctx, tx, toWarband.ID, item.ID, item.Quantity); err != nil {
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
	}
	for _, item := range rec.ToOffer.Items {
		if err := postgresql.adjustStash(ctx, tx, toWarband.ID, item.ID, -item.Quantity); err != nil {
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
		if err := postgresql.adjustStash(ctx, tx, fromWarband.ID, item.ID, item.Quantity); err != nil {
			return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
		}
	}

	// Delegated traders are audit metadata on the ledger row, not a third
	// settlement party; nil maps to NULL.
	var settlementID int64
	err = tx.QueryRowContext(ctx, insertSettlementQuery,
		rec.RequestID, rec.InitiatorID, rec.ResponderID, rec.FromOffer.Gold, rec.ToOffer.Gold,
		rec.FromOffer.TraderID, rec.ToOffer.TraderID).Scan(&settlementID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query insertSettlementQuery: %s", err)
		return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
	}

	for _, entry := range []struct {
		giverID int32
		items   []models.TradeOfferItem
	}{
		{rec.InitiatorID, rec.FromOffer.Items},
		{rec.ResponderID, rec.ToOffer.Items},
	} {
		for _, item := range entry.items {
			_, err := tx.ExecContext(ctx, insertSettledItemQuery,
				settlementID, entry.giverID, item.ID, item.Name, item.Quantity, item.UnitCost)
			if err != nil {
				postgresql.log.Sugar().Errorf("Failed to execute a query insertSettledItemQuery: %s", err)
				return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", trade.ErrSettlementTransfer, err)
	}

	return nil
}

// GetWarbandInfo aggregates complete information about a player's warband,
// including gold, stash contents, and the settlement ledger history.
func (postgresql *PostgreSQL) GetWarbandInfo(ctx context.Context, playerID int32) (*models.WarbandInfoResponse, error) {
	info := &models.WarbandInfoResponse{}

	warband, err := postgresql.GetActiveWarband(ctx, playerID)
	if err != nil {
		return info, err
	}
	info.Warband = warband.Name
	info.Gold = warband.Gold

	stash, err := postgresql.getStash(ctx, postgresql.db, warband.ID)
	if err != nil {
		return info, err
	}
	info.Stash = make([]models.StashItem, 0, len(stash))
	for _, item := range stash {
		info.Stash = append(info.Stash, item)
	}

	settled, err := postgresql.getSettlementHistory(ctx, playerID)
	if err != nil {
		return info, err
	}
	info.TradeHistory = models.TradeHistory{Settled: settled}

	return info, nil
}

// getSettlementHistory loads the player's side of every recorded settlement.
func (postgresql *PostgreSQL) getSettlementHistory(ctx context.Context, playerID int32) ([]models.SettlementDetail, error) {
	rows, err := postgresql.db.QueryContext(ctx, getSettlementsQuery, playerID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getSettlementsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	type settlementRow struct {
		id                       int64
		initiatorID, responderID int32
		goldFrom, goldTo         int
		detail                   models.SettlementDetail
	}

	const initialHistoryCapacity = 10
	settlements := make([]settlementRow, 0, initialHistoryCapacity)
	for rows.Next() {
		var row settlementRow
		var initiatorName, responderName string
		if err := rows.Scan(&row.id, &row.initiatorID, &row.responderID, &initiatorName, &responderName, &row.goldFrom, &row.goldTo); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan settlement in getSettlementHistory: %s", err)
			return nil, err
		}
		if row.initiatorID == playerID {
			row.detail.Partner = responderName
			row.detail.GoldGiven = row.goldFrom
			row.detail.GoldReceived = row.goldTo
		} else {
			row.detail.Partner = initiatorName
			row.detail.GoldGiven = row.goldTo
			row.detail.GoldReceived = row.goldFrom
		}
		settlements = append(settlements, row)
	}
	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in getSettlementHistory: %s", err)
		return nil, err
	}

	details := make([]models.SettlementDetail, 0, len(settlements))
	for _, row := range settlements {
		itemRows, err := postgresql.db.QueryContext(ctx, getSettlementItemsQuery, row.id)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to execute a query getSettlementItemsQuery: %s", err)
			return nil, err
		}
		for itemRows.Next() {
			var giverID int32
			item := models.TradeOfferItem{}
			if err := itemRows.Scan(&giverID, &item.ID, &item.Name, &item.Quantity, &item.UnitCost); err != nil {
				itemRows.Close()
				postgresql.log.Sugar().Errorf("Failed to scan settlement item in getSettlementHistory: %s", err)
				return nil, err
			}
			if giverID == playerID {
				row.detail.ItemsGiven = append(row.detail.ItemsGiven, item)
			} else {
				row.detail.ItemsReceived = append(row.detail.ItemsReceived, item)
			}
		}
		if err := itemRows.Err(); err != nil {
			itemRows.Close()
			return nil, err
		}
		itemRows.Close()
		details = append(details, row.detail)
	}

	return details, nil
}
