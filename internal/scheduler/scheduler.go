// Package scheduler drives every time-based transition: activating due
// pending auctions, ending overdue active ones and re-driving winner
// processing that a crash left behind. Each sweep is bounded and
// idempotent; whatever a sweep misses, the next one picks up again.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/metrics"
	"shopbidgo/internal/store"
)

// Engine is the slice of the write path the scheduler needs.
type Engine interface {
	Activate(ctx context.Context, auctionID string) (*auction.Auction, error)
	EndAuction(ctx context.Context, auctionID string) (*auction.Auction, error)
	ProcessWinner(ctx context.Context, auctionID string) (*auction.Auction, error)
}

type Scheduler struct {
	store    store.AuctionStore
	eng      Engine
	interval time.Duration
	nowFn    func() time.Time
}

func New(st store.AuctionStore, eng Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Scheduler{store: st, eng: eng, interval: interval, nowFn: time.Now}
}

// Run starts the sweep loop and returns; the loop stops with ctx.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce runs one full pass. Per-auction failures never abort the
// sweep; a transition lost to a faster actor is not a failure at all.
func (s *Scheduler) SweepOnce(ctx context.Context) {
	started := time.Now()
	now := s.nowFn().UTC()

	duePending, err := s.store.QueryByStatusAndTime(ctx, auction.StatusPending, now)
	if err != nil {
		zap.L().Error("scheduler.query_pending", zap.Error(err))
	}
	for _, a := range duePending {
		if _, err := s.eng.Activate(ctx, a.ID); err != nil {
			logSweepErr("scheduler.activate", a.ID, err)
		}
	}

	dueActive, err := s.store.QueryByStatusAndTime(ctx, auction.StatusActive, now)
	if err != nil {
		zap.L().Error("scheduler.query_active", zap.Error(err))
	}
	for _, a := range dueActive {
		if _, err := s.eng.EndAuction(ctx, a.ID); err != nil {
			logSweepErr("scheduler.end", a.ID, err)
		}
	}

	unprocessed, err := s.store.QueryUnprocessed(ctx)
	if err != nil {
		zap.L().Error("scheduler.query_unprocessed", zap.Error(err))
	}
	for _, a := range unprocessed {
		if _, err := s.eng.ProcessWinner(ctx, a.ID); err != nil {
			logSweepErr("scheduler.process_winner", a.ID, err)
		}
	}

	metrics.SchedulerSweepDuration.Observe(time.Since(started).Seconds())
}

// logSweepErr demotes races the sweep expects to lose: another actor
// already transitioned the auction, deleted it, or holds the write.
func logSweepErr(op, auctionID string, err error) {
	if errors.Is(err, auction.ErrInvalidTransition) ||
		errors.Is(err, auction.ErrNotFound) ||
		errors.Is(err, auction.ErrContention) {
		zap.L().Debug(op, zap.String("auction_id", auctionID), zap.Error(err))
		return
	}
	zap.L().Error(op, zap.String("auction_id", auctionID), zap.Error(err))
}
