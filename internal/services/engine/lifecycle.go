package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/events"
	"shopbidgo/internal/metrics"
)

// Activate flips a pending auction live. Called by the scheduler when
// StartTime has passed; also usable directly for instant listings.
func (svc *auctionEngine) Activate(ctx context.Context, auctionID string) (*auction.Auction, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		if !a.CanTransition(auction.StatusActive) {
			return auction.ErrInvalidTransition
		}
		a.Status = auction.StatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(auction.StatusPending), string(auction.StatusActive)).Inc()
	svc.armTimer(ctx, a)
	svc.publish(ctx, events.NewStatusChanged(a))
	return a, nil
}

// EndAuction takes an active auction to ended and settles the winner
// before the status-changed event goes out, so subscribers never see an
// ended auction with an undecided winner. If settling fails the ended
// commit stands and the unprocessed sweep finishes the job later.
func (svc *auctionEngine) EndAuction(ctx context.Context, auctionID string) (*auction.Auction, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		if !a.CanTransition(auction.StatusEnded) {
			return auction.ErrInvalidTransition
		}
		a.Status = auction.StatusEnded
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(auction.StatusActive), string(auction.StatusEnded)).Inc()
	svc.disarmTimer(ctx, auctionID)

	settled, _, perr := svc.processWinnerLocked(ctx, auctionID)
	if perr != nil {
		zap.L().Error("winner processing failed after ending",
			zap.String("auction_id", auctionID), zap.Error(perr))
		svc.publish(ctx, events.NewStatusChanged(a))
		return a, nil
	}
	svc.publish(ctx, events.NewStatusChanged(settled))
	return settled, nil
}

// CloseAuction is the admin-only terminal transition. From active it
// settles the winner from the bid history as it stands in the same
// commit; from pending it is a plain cancellation (no bids by
// invariant); from ended it archives an already settled auction.
func (svc *auctionEngine) CloseAuction(ctx context.Context, auctionID string) (*auction.Auction, error) {
	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	var (
		from       auction.Status
		settledNow bool
	)
	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		from = a.Status
		settledNow = false
		if !a.CanTransition(auction.StatusClosed) {
			return auction.ErrInvalidTransition
		}
		if !a.WinnerProcessed {
			applyWinnerDecision(a)
			settledNow = true
		}
		a.Status = auction.StatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(from), string(auction.StatusClosed)).Inc()
	if settledNow {
		metrics.WinnersProcessedTotal.WithLabelValues(winnerOutcome(a)).Inc()
	}
	svc.disarmTimer(ctx, auctionID)
	svc.publish(ctx, events.NewStatusChanged(a))

	if settledNow && a.Winner != nil && svc.dispatch != nil {
		svc.dispatch.WinnerDecided(a)
	}
	return a, nil
}

// RelistAuction re-opens an ended, bid-free auction under a fresh
// schedule. Winner state is cleared; the listing goes back to pending
// and the scheduler picks it up like any new auction.
func (svc *auctionEngine) RelistAuction(ctx context.Context, auctionID string, sched Schedule) (*auction.Auction, error) {
	if !sched.EndTime.After(sched.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}

	unlock := svc.locks.Lock(auctionID)
	defer unlock()

	a, err := svc.mutateLocked(ctx, auctionID, func(a *auction.Auction) error {
		if !a.CanTransition(auction.StatusPending) {
			return auction.ErrInvalidTransition
		}
		if len(a.BidHistory) > 0 {
			return auction.ErrCannotRelist
		}
		a.Status = auction.StatusPending
		a.StartTime = sched.StartTime.UTC()
		a.EndTime = sched.EndTime.UTC()
		a.Winner = nil
		a.WinnerProcessed = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(auction.StatusEnded), string(auction.StatusPending)).Inc()
	svc.publish(ctx, events.NewStatusChanged(a))
	return a, nil
}
