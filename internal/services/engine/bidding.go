package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/events"
	"shopbidgo/internal/metrics"
)

// PlaceBid admits one bid: validate against a fresh snapshot under the
// auction's mutex, append, evaluate the popcorn extension, commit. A
// rejected bid leaves no observable trace.
func (svc *auctionEngine) PlaceBid(ctx context.Context, auctionID, bidderID, displayName string, amount decimal.Decimal) (*BidReceipt, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	var extended bool
	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		extended = false
		if a.Status != auction.StatusActive {
			return auction.ErrAuctionNotActive
		}
		if !amount.GreaterThan(a.CurrentBid) {
			return auction.ErrBidTooLow
		}
		if svc.cfg.MinIncrement.IsPositive() && amount.LessThan(a.CurrentBid.Add(svc.cfg.MinIncrement)) {
			return auction.ErrBidTooLow
		}

		now := svc.nowFn().UTC()
		a.AppendBid(auction.Bid{
			BidderID:    bidderID,
			DisplayName: displayName,
			Amount:      amount,
			PlacedAt:    now,
		})
		if newEnd, ok := auction.EvaluatePopcorn(a.EndTime, a.Popcorn, now); ok {
			a.EndTime = newEnd
			extended = true
		}
		return nil
	})
	if err != nil {
		metrics.BidsTotal.WithLabelValues(bidResult(err)).Inc()
		return nil, err
	}

	metrics.BidsTotal.WithLabelValues(metrics.ResultAccepted).Inc()
	if extended {
		metrics.PopcornExtensionsTotal.Inc()
		svc.armTimer(ctx, a)
	}

	svc.publish(ctx, events.NewBidPlaced(a, false))
	if extended {
		svc.publish(ctx, events.NewTimeExtended(a))
	}
	return receiptFrom(a, extended), nil
}

// BuyNow is a fixed-price exit: the bid, the tentative winner and the
// active to ended transition land in one commit, so of two racing
// buyers exactly one can ever win. The loser re-reads an ended auction
// and gets ErrAuctionNotActive.
func (svc *auctionEngine) BuyNow(ctx context.Context, auctionID, bidderID, displayName string) (*BidReceipt, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		if a.Status != auction.StatusActive {
			return auction.ErrAuctionNotActive
		}
		if a.BuyNowPrice == nil {
			return auction.ErrBuyNowUnavailable
		}
		price := *a.BuyNowPrice
		// Bidding already at or past the fixed price: buy-now is gone.
		if len(a.BidHistory) > 0 && !price.GreaterThan(a.CurrentBid) {
			return auction.ErrBuyNowUnavailable
		}

		a.AppendBid(auction.Bid{
			BidderID:    bidderID,
			DisplayName: displayName,
			Amount:      price,
			PlacedAt:    svc.nowFn().UTC(),
			ViaBuyNow:   true,
		})
		a.Status = auction.StatusEnded
		a.Winner = &auction.Winner{
			BidderID:    bidderID,
			DisplayName: displayName,
			Amount:      price,
			ViaBuyNow:   true,
		}
		a.WinnerProcessed = true
		return nil
	})
	if err != nil {
		metrics.BuyNowTotal.WithLabelValues(bidResult(err)).Inc()
		return nil, err
	}

	metrics.BuyNowTotal.WithLabelValues(metrics.ResultAccepted).Inc()
	metrics.TransitionsTotal.WithLabelValues(string(auction.StatusActive), string(auction.StatusEnded)).Inc()
	metrics.WinnersProcessedTotal.WithLabelValues(metrics.OutcomeSold).Inc()
	svc.disarmTimer(ctx, auctionID)

	svc.publish(ctx,
		events.NewBidPlaced(a, true),
		events.NewStatusChanged(a))

	if svc.dispatch != nil {
		svc.dispatch.WinnerDecided(a)
	}
	return receiptFrom(a, false), nil
}

func receiptFrom(a *auction.Auction, extended bool) *BidReceipt {
	return &BidReceipt{
		AuctionID:    a.ID,
		CurrentBid:   a.CurrentBid,
		BidHistory:   a.BidHistory,
		AuctionEnded: a.Status == auction.StatusEnded || a.Status == auction.StatusClosed,
		Winner:       a.Winner,
		EndTime:      a.EndTime,
		Extended:     extended,
		Version:      a.Version,
	}
}

func bidResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultAccepted
	case errors.Is(err, auction.ErrBidTooLow):
		return metrics.ResultTooLow
	case errors.Is(err, auction.ErrAuctionNotActive):
		return metrics.ResultNotActive
	case errors.Is(err, auction.ErrBuyNowUnavailable):
		return metrics.ResultUnavailable
	case errors.Is(err, auction.ErrContention):
		return metrics.ResultContention
	default:
		return metrics.ResultError
	}
}
