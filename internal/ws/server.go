package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/services/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait

	maxFrameBytes = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Storefront widgets embed from arbitrary shop domains.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ConnContext is the identity a frame handler runs under: which auction
// room the connection joined and who the viewer is.
type ConnContext struct {
	AuctionID string
	UserID    string
	Server    *WsServer
}

type WsServer struct {
	hub    *Hub
	subMgr *subscriptionManager
	router *Router
	eng    engine.IAuctionEngine
}

// NewWsServer wires the frame router and, when rdc is non-nil, the
// cross-instance Redis fan-in. With a nil client the hub still serves
// broadcasts from this process (single-instance mode).
func NewWsServer(h *Hub, rdc *redis.Client, eng engine.IAuctionEngine) *WsServer {
	srv := &WsServer{
		hub:    h,
		router: NewRouter(),
		eng:    eng,
	}
	if rdc != nil {
		srv.subMgr = newSubscriptionManager(rdc, h)
	}
	srv.registerHandlers() // all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID := ginCtx.Query("auction_id")
	userID := ginCtx.Query("user_id")
	if auctionID == "" || userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "auction_id and user_id are required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxFrameBytes)

	conn := &clientConn{rawConn: rawConn}
	s.hub.Join(auctionID, conn)
	if s.subMgr != nil {
		s.subMgr.Subscribe(auctionID) // may be a no-op (already subscribed)
	}

	if err := s.pushSnapshot(ginCtx.Request.Context(), auctionID, conn); err != nil &&
		!errors.Is(err, auction.ErrNotFound) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(auctionID, userID, conn)
	go s.pinger(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, "auctions/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*engine.BidReceipt, error) {
			return s.eng.PlaceBid(ctx, cc.AuctionID, cc.UserID, req.DisplayName, req.Amount)
		},
	)

	Register(s.router, "auctions/buy-now",
		func(ctx context.Context, cc *ConnContext, req BuyNowRequest) (*engine.BidReceipt, error) {
			return s.eng.BuyNow(ctx, cc.AuctionID, cc.UserID, req.DisplayName)
		},
	)
}

// pushSnapshot sends current auction state so a late joiner renders
// without waiting for the next live event.
func (s *WsServer) pushSnapshot(ctx context.Context, id string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	a, err := s.eng.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": EventSnapshot,
		"body":  a,
	})
}

func (s *WsServer) reader(auctionID, userID string, conn *clientConn) {
	defer func() {
		s.hub.Leave(auctionID, conn)
		if s.subMgr != nil {
			s.subMgr.Unsubscribe(auctionID)
		}
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{AuctionID: auctionID, UserID: userID, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or timed out
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(gin.H{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := gin.H{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			conn.close()
			return
		}
	}
}
