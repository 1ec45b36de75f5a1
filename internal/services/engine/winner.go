package engine

import (
	"context"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/events"
	"shopbidgo/internal/metrics"
)

// ProcessWinner settles an ended or closed auction. Safe to call any
// number of times: WinnerProcessed is the exactly-once guard, so a
// repeat call returns the settled snapshot without committing anything.
// The unprocessed sweep uses this to finish auctions that crashed
// between ending and settling.
func (svc *auctionEngine) ProcessWinner(ctx context.Context, auctionID string) (*auction.Auction, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	a, ran, err := svc.processWinnerLocked(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if ran {
		svc.publish(ctx, events.NewStatusChanged(a))
	}
	return a, nil
}

// processWinnerLocked is ProcessWinner minus locking and event
// emission; EndAuction calls it while already holding the auction's
// mutex and emits a single status-changed for the combined result.
// ran reports whether a settling commit actually happened.
func (svc *auctionEngine) processWinnerLocked(ctx context.Context, auctionID string) (a *auction.Auction, ran bool, err error) {
	a, err = svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		ran = false
		if a.WinnerProcessed {
			return errSkipWrite
		}
		if a.Status != auction.StatusEnded && a.Status != auction.StatusClosed {
			return auction.ErrInvalidTransition
		}
		applyWinnerDecision(a)
		ran = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !ran {
		metrics.WinnersProcessedTotal.WithLabelValues(metrics.OutcomeAlreadyDone).Inc()
		return a, false, nil
	}

	metrics.WinnersProcessedTotal.WithLabelValues(winnerOutcome(a)).Inc()
	if a.Winner != nil && svc.dispatch != nil {
		svc.dispatch.WinnerDecided(a)
	}
	return a, true, nil
}

// applyWinnerDecision settles the record from its bid history. The
// candidate is the history tail (highest by construction). A buy-now
// candidate already bought at the advertised price, so the reserve
// check applies only to regular bids.
func applyWinnerDecision(a *auction.Auction) {
	a.WinnerProcessed = true
	top := a.HighestBid()
	if top == nil {
		return
	}
	if !top.ViaBuyNow && !a.ReserveMet(top.Amount) {
		return
	}
	a.Winner = &auction.Winner{
		BidderID:    top.BidderID,
		DisplayName: top.DisplayName,
		Amount:      top.Amount,
		ViaBuyNow:   top.ViaBuyNow,
	}
}

func winnerOutcome(a *auction.Auction) string {
	switch {
	case a.Winner != nil:
		return metrics.OutcomeSold
	case len(a.BidHistory) > 0:
		return metrics.OutcomeReserveNotMet
	default:
		return metrics.OutcomeNoBids
	}
}
