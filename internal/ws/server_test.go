package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/services/engine"
	"shopbidgo/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemStore, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ms := store.NewMemStore()
	eng := engine.NewAuctionEngine(ms, nil, nil, nil, engine.Config{})
	hub := NewHub()
	srv := NewWsServer(hub, nil, eng)

	r := gin.New()
	r.GET("/ws", srv.Handle)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, ms, hub
}

func seedActive(t *testing.T, ms *store.MemStore, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, ms.Create(context.Background(), &auction.Auction{
		ID:          id,
		ShopID:      "shop-1",
		ProductRef:  "prod-1",
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		StartingBid: decimal.NewFromInt(10),
		CurrentBid:  decimal.NewFromInt(10),
		Status:      auction.StatusActive,
		BidHistory:  []auction.Bid{},
		Version:     1,
	}))
}

func dialRoom(t *testing.T, ts *httptest.Server, auctionID, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws?auction_id=" + auctionID + "&user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestJoinPushesSnapshot(t *testing.T) {
	ts, ms, _ := newTestServer(t)
	seedActive(t, ms, "a1")

	conn := dialRoom(t, ts, "a1", "u1")

	var frame struct {
		Event string           `json:"event"`
		Body  *auction.Auction `json:"body"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, EventSnapshot, frame.Event)
	require.NotNil(t, frame.Body)
	assert.Equal(t, "a1", frame.Body.ID)
	assert.Equal(t, auction.StatusActive, frame.Body.Status)
	assert.True(t, decimal.NewFromInt(10).Equal(frame.Body.CurrentBid))
}

func TestBidFrameAckCarriesReceipt(t *testing.T) {
	ts, ms, _ := newTestServer(t)
	seedActive(t, ms, "a1")

	conn := dialRoom(t, ts, "a1", "u1")

	var snap Envelope
	require.NoError(t, conn.ReadJSON(&snap)) // discard snapshot

	body, err := json.Marshal(BidRequest{Amount: decimal.NewFromInt(12), DisplayName: "Dana"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: "auctions/bid", Body: body}))

	var ack struct {
		Event string             `json:"event"`
		Body  *engine.BidReceipt `json:"body"`
	}
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "auctions/bid-ack", ack.Event)
	require.NotNil(t, ack.Body)
	assert.True(t, decimal.NewFromInt(12).Equal(ack.Body.CurrentBid))
	assert.Equal(t, int64(2), ack.Body.Version)
}

func TestRejectedBidReturnsErrorFrame(t *testing.T) {
	ts, ms, _ := newTestServer(t)
	seedActive(t, ms, "a1")

	conn := dialRoom(t, ts, "a1", "u1")

	var snap Envelope
	require.NoError(t, conn.ReadJSON(&snap))

	body, err := json.Marshal(BidRequest{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: "auctions/bid", Body: body}))

	var frame struct {
		Event string    `json:"event"`
		Body  ErrorBody `json:"body"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Event)
	assert.Contains(t, frame.Body.Error, "bid must be higher")
}

func TestUnknownFrameReturnsErrorFrame(t *testing.T) {
	ts, ms, _ := newTestServer(t)
	seedActive(t, ms, "a1")

	conn := dialRoom(t, ts, "a1", "u1")

	var snap Envelope
	require.NoError(t, conn.ReadJSON(&snap))

	require.NoError(t, conn.WriteJSON(Envelope{Event: "auctions/nope"}))

	var frame struct {
		Event string    `json:"event"`
		Body  ErrorBody `json:"body"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Event)
	assert.Equal(t, "unknown_event", frame.Body.Error)
}

func TestBuyNowFrameEndsAuction(t *testing.T) {
	ts, ms, _ := newTestServer(t)
	now := time.Now().UTC()
	price := decimal.NewFromInt(50)
	require.NoError(t, ms.Create(context.Background(), &auction.Auction{
		ID:          "a1",
		ShopID:      "shop-1",
		ProductRef:  "prod-1",
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		StartingBid: decimal.NewFromInt(10),
		CurrentBid:  decimal.NewFromInt(10),
		BuyNowPrice: &price,
		Status:      auction.StatusActive,
		BidHistory:  []auction.Bid{},
		Version:     1,
	}))

	conn := dialRoom(t, ts, "a1", "u1")

	var snap Envelope
	require.NoError(t, conn.ReadJSON(&snap))

	body, err := json.Marshal(BuyNowRequest{DisplayName: "Dana"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: "auctions/buy-now", Body: body}))

	var ack struct {
		Event string             `json:"event"`
		Body  *engine.BidReceipt `json:"body"`
	}
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "auctions/buy-now-ack", ack.Event)
	require.NotNil(t, ack.Body)
	assert.True(t, ack.Body.AuctionEnded)
	require.NotNil(t, ack.Body.Winner)
	assert.Equal(t, "u1", ack.Body.Winner.BidderID)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	ts, ms, hub := newTestServer(t)
	seedActive(t, ms, "a1")
	seedActive(t, ms, "a2")

	c1 := dialRoom(t, ts, "a1", "u1")
	c2 := dialRoom(t, ts, "a2", "u2")

	var snap Envelope
	require.NoError(t, c1.ReadJSON(&snap)) // both joined once snapshots arrive
	require.NoError(t, c2.ReadJSON(&snap))

	hub.Broadcast("a1", []byte(`{"event":"auctions/bid-placed","body":{"version":2}}`))

	_, msg, err := c1.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"auctions/bid-placed","body":{"version":2}}`, string(msg))

	_ = c2.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = c2.ReadMessage()
	assert.Error(t, err) // nothing crosses rooms
}
