package integrations

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"trade_post/internal/app"
	"trade_post/internal/models"
	"trade_post/internal/negotiation"
	"trade_post/internal/pkg/logger"
	"trade_post/internal/service"
	"trade_post/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

var testDatabaseURI string

func init() {
	if err := godotenv.Load("../integration/.env"); err != nil {
		log.Println("No .env file found, using default values")
	}

	testDatabaseURI = os.Getenv("TEST_DATABASE_URI")
}

type IntegrationTestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	db     *storage.PostgreSQL
	rawDB  *sql.DB
}

func TestIntegrationSuite(t *testing.T) {
	if testDatabaseURI == "" {
		t.Skip("TEST_DATABASE_URI is not set, skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	var l *logger.Logger
	var err error
	if l, err = logger.CreateLogger("info"); err != nil {
		log.Fatal("Failed to create logger:", err)
	}

	s.db, err = storage.NewPostgreSQL(testDatabaseURI, l)
	s.Require().NoError(err, "Error connecting to test database")

	s.rawDB, err = sql.Open("pgx", testDatabaseURI)
	s.Require().NoError(err, "Error opening raw test database connection")

	schema, err := os.ReadFile("../../migrations/init.sql")
	s.Require().NoError(err, "Error reading schema file")
	_, err = s.rawDB.Exec(string(schema))
	s.Require().NoError(err, "Error applying schema")

	store := negotiation.NewStore(s.db, l)
	appInstance := app.NewApp(s.db, store, l)
	serviceInstance := service.NewService(appInstance, "localhost:0", l)

	s.server = httptest.NewServer(serviceInstance.NewRouter())
	s.client = s.server.Client()
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.server.Close()
	s.db.Close()
	s.rawDB.Close()
}

func (s *IntegrationTestSuite) SetupTest() {
	_, err := s.rawDB.Exec(`TRUNCATE content.trade_settlement_items, content.trade_settlements, content.stash, content.warbands, content.items, content.players RESTART IDENTITY CASCADE;`)
	s.Require().NoError(err, "Error truncating tables")
}

func (s *IntegrationTestSuite) authenticate(username string) string {
	reqBody, err := json.Marshal(models.AuthRequest{Username: username, Password: "password"})
	s.Require().NoError(err)

	resp, err := s.client.Post(s.server.URL+"/api/auth", "application/json", bytes.NewBuffer(reqBody))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode, "Expected status 200 for authentication")

	var authResp models.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	s.Require().NotEmpty(authResp.Token)
	return authResp.Token
}

func (s *IntegrationTestSuite) playerID(username string) int32 {
	var id int32
	err := s.rawDB.QueryRow(`SELECT id FROM content.players WHERE username = $1;`, username).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *IntegrationTestSuite) seedWarband(playerID int32, name string, gold int) int32 {
	var warbandID int32
	err := s.rawDB.QueryRow(
		`INSERT INTO content.warbands (player_id, warband_name, gold) VALUES ($1, $2, $3) RETURNING id;`,
		playerID, name, gold).Scan(&warbandID)
	s.Require().NoError(err)
	return warbandID
}

func (s *IntegrationTestSuite) seedItem(name string, cost int) int32 {
	var itemID int32
	err := s.rawDB.QueryRow(
		`INSERT INTO content.items (item_name, cost) VALUES ($1, $2) ON CONFLICT (item_name) DO UPDATE SET cost = EXCLUDED.cost RETURNING id;`,
		name, cost).Scan(&itemID)
	s.Require().NoError(err)
	return itemID
}

func (s *IntegrationTestSuite) seedStash(warbandID, itemID int32, quantity int) {
	_, err := s.rawDB.Exec(
		`INSERT INTO content.stash (warband_id, item_id, quantity) VALUES ($1, $2, $3);`,
		warbandID, itemID, quantity)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) doJSON(method, path, token string, payload any) (*http.Response, []byte) {
	var body bytes.Buffer
	if payload != nil {
		s.Require().NoError(json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &body)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	return resp, buf.Bytes()
}

func (s *IntegrationTestSuite) warbandGold(warbandID int32) int {
	var gold int
	err := s.rawDB.QueryRow(`SELECT gold FROM content.warbands WHERE id = $1;`, warbandID).Scan(&gold)
	s.Require().NoError(err)
	return gold
}

func (s *IntegrationTestSuite) stashQuantity(warbandID, itemID int32) int {
	var quantity int
	err := s.rawDB.QueryRow(
		`SELECT COALESCE(SUM(quantity), 0) FROM content.stash WHERE warband_id = $1 AND item_id = $2;`,
		warbandID, itemID).Scan(&quantity)
	s.Require().NoError(err)
	return quantity
}

// TestTradeSettlement walks the happy path: 50 gold against one sword, both
// sides lock, goods and gold swap atomically, and the totals across both
// warbands are conserved.
func (s *IntegrationTestSuite) TestTradeSettlement() {
	tokenOne := s.authenticate("reikland_captain")
	tokenTwo := s.authenticate("rat_master")
	playerOne := s.playerID("reikland_captain")
	playerTwo := s.playerID("rat_master")

	warbandOne := s.seedWarband(playerOne, "Reikland Mercenaries", 100)
	warbandTwo := s.seedWarband(playerTwo, "Clan Eshin", 80)
	sword := s.seedItem("Sword", 30)
	s.seedStash(warbandTwo, sword, 1)

	goldBefore := s.warbandGold(warbandOne) + s.warbandGold(warbandTwo)

	resp, body := s.doJSON(http.MethodPost, "/api/trades", tokenOne,
		models.CreateTradeRequest{Responder: "rat_master"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var view models.TradeView
	s.Require().NoError(json.Unmarshal(body, &view))
	tradePath := "/api/trades/" + view.ID.String()

	hiredTrader := int32(7)
	resp, body = s.doJSON(http.MethodPost, tradePath+"/offer", tokenOne,
		models.OfferUpdateRequest{Offer: models.TradeOffer{Gold: 50, TraderID: &hiredTrader}, Counter: 1})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.doJSON(http.MethodPost, tradePath+"/offer", tokenTwo,
		models.OfferUpdateRequest{Offer: models.TradeOffer{Items: []models.TradeOfferItem{{ID: sword, Quantity: 1}}}, Counter: 1})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.doJSON(http.MethodPost, tradePath+"/lock", tokenOne, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.doJSON(http.MethodPost, tradePath+"/lock", tokenTwo, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &view))
	s.Equal("settled", view.Status)

	s.Equal(50, s.warbandGold(warbandOne))
	s.Equal(130, s.warbandGold(warbandTwo))
	s.Equal(1, s.stashQuantity(warbandOne, sword))
	s.Equal(0, s.stashQuantity(warbandTwo, sword))

	// Conservation: no gold or swords created or destroyed.
	s.Equal(goldBefore, s.warbandGold(warbandOne)+s.warbandGold(warbandTwo))
	s.Equal(1, s.stashQuantity(warbandOne, sword)+s.stashQuantity(warbandTwo, sword))

	// The delegated trader is recorded on the settlement row.
	var traderFrom sql.NullInt32
	var traderTo sql.NullInt32
	s.Require().NoError(s.rawDB.QueryRow(
		`SELECT trader_from, trader_to FROM content.trade_settlements WHERE request_id = $1;`,
		view.ID).Scan(&traderFrom, &traderTo))
	s.Require().True(traderFrom.Valid)
	s.Equal(hiredTrader, traderFrom.Int32)
	s.False(traderTo.Valid)

	// Both sides see the exchange in their ledger.
	resp, body = s.doJSON(http.MethodGet, "/api/info", tokenOne, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var info models.WarbandInfoResponse
	s.Require().NoError(json.Unmarshal(body, &info))
	s.Require().Len(info.TradeHistory.Settled, 1)
	s.Equal("rat_master", info.TradeHistory.Settled[0].Partner)
	s.Equal(50, info.TradeHistory.Settled[0].GoldGiven)
}

// TestStaleInventoryRollback sells the offered sword between the two locks;
// settlement must fail with no inventory movement and reopen the second locker.
func (s *IntegrationTestSuite) TestStaleInventoryRollback() {
	tokenOne := s.authenticate("reikland_captain")
	tokenTwo := s.authenticate("rat_master")
	playerOne := s.playerID("reikland_captain")
	playerTwo := s.playerID("rat_master")

	warbandOne := s.seedWarband(playerOne, "Reikland Mercenaries", 100)
	warbandTwo := s.seedWarband(playerTwo, "Clan Eshin", 80)
	sword := s.seedItem("Sword", 30)
	s.seedStash(warbandTwo, sword, 1)

	resp, body := s.doJSON(http.MethodPost, "/api/trades", tokenOne,
		models.CreateTradeRequest{Responder: "rat_master"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var view models.TradeView
	s.Require().NoError(json.Unmarshal(body, &view))
	tradePath := "/api/trades/" + view.ID.String()

	resp, body = s.doJSON(http.MethodPost, tradePath+"/offer", tokenTwo,
		models.OfferUpdateRequest{Offer: models.TradeOffer{Items: []models.TradeOfferItem{{ID: sword, Quantity: 1}}}, Counter: 1})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, _ = s.doJSON(http.MethodPost, tradePath+"/lock", tokenTwo, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// Unrelated action: the sword leaves the stash before the second lock.
	resp, body = s.doJSON(http.MethodPost, "/api/sell", tokenTwo,
		models.SellItemRequest{ItemID: sword, Quantity: 1})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	goldOneBefore := s.warbandGold(warbandOne)
	goldTwoBefore := s.warbandGold(warbandTwo)

	resp, body = s.doJSON(http.MethodPost, tradePath+"/lock", tokenOne, nil)
	s.Require().Equal(http.StatusConflict, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &view))
	s.Equal("locked", view.Status)
	s.False(view.FromAccepted, "second locker must be reopened")
	s.True(view.ToAccepted)
	s.NotEmpty(view.Notice)

	// Settlement moved nothing.
	s.Equal(goldOneBefore, s.warbandGold(warbandOne))
	s.Equal(goldTwoBefore, s.warbandGold(warbandTwo))
	s.Equal(0, s.stashQuantity(warbandOne, sword))
}

// TestCancelRejectsLatePush cancels mid-edit and verifies a queued push is
// refused afterwards.
func (s *IntegrationTestSuite) TestCancelRejectsLatePush() {
	tokenOne := s.authenticate("reikland_captain")
	tokenTwo := s.authenticate("rat_master")
	playerOne := s.playerID("reikland_captain")
	playerTwo := s.playerID("rat_master")

	s.seedWarband(playerOne, "Reikland Mercenaries", 100)
	s.seedWarband(playerTwo, "Clan Eshin", 80)

	resp, body := s.doJSON(http.MethodPost, "/api/trades", tokenOne,
		models.CreateTradeRequest{Responder: "rat_master"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var view models.TradeView
	s.Require().NoError(json.Unmarshal(body, &view))
	tradePath := "/api/trades/" + view.ID.String()

	resp, body = s.doJSON(http.MethodPost, tradePath+"/offer", tokenOne,
		models.OfferUpdateRequest{Offer: models.TradeOffer{Gold: 10}, Counter: 1})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.doJSON(http.MethodPost, tradePath+"/cancel", tokenTwo, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &view))
	s.Equal("cancelled", view.Status)

	resp, body = s.doJSON(http.MethodPost, tradePath+"/offer", tokenOne,
		models.OfferUpdateRequest{Offer: models.TradeOffer{Gold: 20}, Counter: 2})
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Contains(string(body), "no longer active")
}

// TestCreateRequiresRoster verifies a responder without an active warband
// cannot be invited to trade.
func (s *IntegrationTestSuite) TestCreateRequiresRoster() {
	tokenOne := s.authenticate("reikland_captain")
	s.authenticate("wanderer")
	playerOne := s.playerID("reikland_captain")
	s.seedWarband(playerOne, "Reikland Mercenaries", 100)

	resp, body := s.doJSON(http.MethodPost, "/api/trades", tokenOne,
		models.CreateTradeRequest{Responder: "wanderer"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(string(body), "no active warband")
}
