// Package downstream is the hand-off edge of the engine: once a winner
// is committed, notification and storefront restriction run out here,
// off the lifecycle transition's critical path. Failures are logged and
// retried; they never roll back the committed auction record.
package downstream

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"shopbidgo/internal/auction"
)

// WinnerNotifier tells the outside world who won. Implementations must
// be idempotent per auction.
type WinnerNotifier interface {
	NotifyWinner(ctx context.Context, auctionID string, w auction.Winner) error
}

// ProductRestrictor takes the product off the open storefront once it
// belongs to the winner.
type ProductRestrictor interface {
	RestrictProduct(ctx context.Context, productRef, winnerID string) error
}

// LogNotifier is the default stand-in when no transport is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyWinner(_ context.Context, auctionID string, w auction.Winner) error {
	zap.L().Info("winner decided",
		zap.String("auction_id", auctionID),
		zap.String("bidder_id", w.BidderID),
		zap.String("amount", w.Amount.String()),
		zap.Bool("via_buy_now", w.ViaBuyNow))
	return nil
}

// LogRestrictor is the default stand-in for the storefront toggle.
type LogRestrictor struct{}

func (LogRestrictor) RestrictProduct(_ context.Context, productRef, winnerID string) error {
	zap.L().Info("product restricted",
		zap.String("product_ref", productRef),
		zap.String("winner_id", winnerID))
	return nil
}

// NATSNotifier publishes winner announcements on auctions.winner.<id>.
type NATSNotifier struct {
	nc *nats.Conn
}

func NewNATSNotifier(url string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{nc: nc}, nil
}

func (n *NATSNotifier) NotifyWinner(_ context.Context, auctionID string, w auction.Winner) error {
	payload, err := json.Marshal(map[string]interface{}{
		"auction_id": auctionID,
		"winner":     w,
	})
	if err != nil {
		return err
	}
	return n.nc.Publish("auctions.winner."+auctionID, payload)
}

func (n *NATSNotifier) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}
