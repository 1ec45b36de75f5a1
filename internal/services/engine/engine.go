// Package engine is the write path of the auction system: bid
// admission, lifecycle transitions, winner processing. Every mutation
// is a read-validate-write cycle against the store's conditional-write
// primitive, serialized per auction, with the committed snapshot fanned
// out through the event broadcaster.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/downstream"
	"shopbidgo/internal/events"
	"shopbidgo/internal/metrics"
	"shopbidgo/internal/store"
)

var ErrInvalidInput = errors.New("invalid auction parameters")

// errSkipWrite aborts a mutation that turned out to be a no-op, e.g.
// winner processing finding the work already done. The snapshot is
// returned unchanged and nothing is committed.
var errSkipWrite = errors.New("skip write")

// DeadlineTimer arms the low-latency ending trigger for an active
// auction. The scheduler sweep remains the correctness backstop, so a
// nil timer only costs latency, never correctness.
type DeadlineTimer interface {
	ArmEnd(ctx context.Context, auctionID string, endTime time.Time) error
	Disarm(ctx context.Context, auctionID string) error
}

// CreateParams describes a new listing. The auction starts out pending;
// the scheduler flips it active once StartTime arrives.
type CreateParams struct {
	ShopID       string
	ProductRef   string
	StartTime    time.Time
	EndTime      time.Time
	StartingBid  decimal.Decimal
	BuyNowPrice  *decimal.Decimal
	ReservePrice *decimal.Decimal
	Popcorn      auction.PopcornConfig
}

// Schedule is the fresh window supplied on relist.
type Schedule struct {
	StartTime time.Time
	EndTime   time.Time
}

// BidReceipt is what a bidder gets back for a committed bid or buy-now.
type BidReceipt struct {
	AuctionID    string          `json:"auction_id"`
	CurrentBid   decimal.Decimal `json:"current_bid"`
	BidHistory   []auction.Bid   `json:"bid_history"`
	AuctionEnded bool            `json:"auction_ended"`
	Winner       *auction.Winner `json:"winner,omitempty"`
	EndTime      time.Time       `json:"end_time"`
	Extended     bool            `json:"extended"`
	Version      int64           `json:"version"`
}

type IAuctionEngine interface {
	CreateAuction(ctx context.Context, p CreateParams) (*auction.Auction, error)
	GetAuction(ctx context.Context, id string) (*auction.Auction, error)
	ListAuctions(ctx context.Context, shopID string, st auction.Status, limit, offset int) ([]*auction.Auction, error)
	DeleteAuction(ctx context.Context, id string) error

	PlaceBid(ctx context.Context, auctionID, bidderID, displayName string, amount decimal.Decimal) (*BidReceipt, error)
	BuyNow(ctx context.Context, auctionID, bidderID, displayName string) (*BidReceipt, error)

	Activate(ctx context.Context, auctionID string) (*auction.Auction, error)
	EndAuction(ctx context.Context, auctionID string) (*auction.Auction, error)
	CloseAuction(ctx context.Context, auctionID string) (*auction.Auction, error)
	RelistAuction(ctx context.Context, auctionID string, sched Schedule) (*auction.Auction, error)
	ProcessWinner(ctx context.Context, auctionID string) (*auction.Auction, error)
}

type Config struct {
	MinIncrement  decimal.Decimal
	RetryAttempts int
}

type auctionEngine struct {
	store    store.AuctionStore
	bc       events.Broadcaster
	timer    DeadlineTimer
	dispatch *downstream.Dispatcher
	locks    *keyedMutex
	cfg      Config
	nowFn    func() time.Time
}

var _ IAuctionEngine = (*auctionEngine)(nil)

// NewAuctionEngine wires the write path. timer and disp may be nil;
// bc may be nil in embedded setups that do not fan events out.
func NewAuctionEngine(st store.AuctionStore, bc events.Broadcaster, timer DeadlineTimer, disp *downstream.Dispatcher, cfg Config) IAuctionEngine {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	return &auctionEngine{
		store:    st,
		bc:       bc,
		timer:    timer,
		dispatch: disp,
		locks:    newKeyedMutex(),
		cfg:      cfg,
		nowFn:    time.Now,
	}
}

func (p CreateParams) validate() error {
	if p.ShopID == "" || p.ProductRef == "" {
		return fmt.Errorf("%w: shop_id and product_ref are required", ErrInvalidInput)
	}
	if !p.EndTime.After(p.StartTime) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}
	if p.StartingBid.IsNegative() {
		return fmt.Errorf("%w: starting_bid must not be negative", ErrInvalidInput)
	}
	if p.BuyNowPrice != nil && !p.BuyNowPrice.GreaterThan(p.StartingBid) {
		return fmt.Errorf("%w: buy_now_price must exceed starting_bid", ErrInvalidInput)
	}
	if p.Popcorn.Enabled && (p.Popcorn.TriggerSeconds <= 0 || p.Popcorn.ExtendSeconds <= 0) {
		return fmt.Errorf("%w: popcorn trigger and extend must be positive", ErrInvalidInput)
	}
	return nil
}

func (svc *auctionEngine) CreateAuction(ctx context.Context, p CreateParams) (*auction.Auction, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	a := &auction.Auction{
		ID:           uuid.NewString(),
		ShopID:       p.ShopID,
		ProductRef:   p.ProductRef,
		StartTime:    p.StartTime.UTC(),
		EndTime:      p.EndTime.UTC(),
		StartingBid:  p.StartingBid,
		CurrentBid:   p.StartingBid,
		BuyNowPrice:  p.BuyNowPrice,
		ReservePrice: p.ReservePrice,
		Status:       auction.StatusPending,
		BidHistory:   []auction.Bid{},
		Popcorn:      p.Popcorn,
		Version:      1,
	}
	if err := svc.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (svc *auctionEngine) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	a, err := svc.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auction.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (svc *auctionEngine) ListAuctions(ctx context.Context, shopID string, st auction.Status, limit, offset int) ([]*auction.Auction, error) {
	if limit == 0 {
		limit = 10
	}
	return svc.store.ListByShop(ctx, shopID, st, limit, offset)
}

func (svc *auctionEngine) DeleteAuction(ctx context.Context, id string) error {
	unlock := svc.locks.Lock(id)
	defer unlock()

	err := svc.store.Delete(ctx, id)
	switch {
	case err == nil:
		svc.disarmTimer(ctx, id)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return auction.ErrNotFound
	case errors.Is(err, store.ErrHasBids):
		return auction.ErrAuctionHasBids
	default:
		return err
	}
}

// mutateLocked runs fn against fresh snapshots until the conditional
// write lands or the retry budget runs out. The caller must hold the
// auction's mutex. fn sees a private clone and may mutate it freely;
// any error from fn aborts without committing.
func (svc *auctionEngine) mutateLocked(ctx context.Context, id string, fn func(a *auction.Auction) error) (*auction.Auction, error) {
	for attempt := 1; attempt <= svc.cfg.RetryAttempts; attempt++ {
		a, err := svc.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, auction.ErrNotFound
			}
			return nil, err
		}

		expected := a.Version
		if err := fn(a); err != nil {
			if errors.Is(err, errSkipWrite) {
				return a, nil
			}
			return nil, err
		}
		a.Version = expected + 1

		err = svc.store.ConditionalWrite(ctx, expected, a)
		if err == nil {
			metrics.WriteAttempts.Observe(float64(attempt))
			return a, nil
		}
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.VersionConflictsTotal.Inc()
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, auction.ErrNotFound
		}
		return nil, err
	}
	return nil, auction.ErrContention
}

// publish fans committed events out while the auction's mutex is still
// held, which keeps per-auction emission in commit order. A broadcast
// failure is logged, never surfaced: the mutation already committed and
// the journal is the recovery path.
func (svc *auctionEngine) publish(ctx context.Context, evs ...events.Event) {
	if svc.bc == nil {
		return
	}
	for _, ev := range evs {
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
		if err := svc.bc.Publish(ctx, ev); err != nil {
			zap.L().Warn("event publish failed",
				zap.String("auction_id", ev.AuctionID),
				zap.Int64("version", ev.Version),
				zap.Error(err))
		}
	}
}

func (svc *auctionEngine) armTimer(ctx context.Context, a *auction.Auction) {
	if svc.timer == nil {
		return
	}
	if err := svc.timer.ArmEnd(ctx, a.ID, a.EndTime); err != nil {
		zap.L().Warn("deadline timer arm failed", zap.String("auction_id", a.ID), zap.Error(err))
	}
}

func (svc *auctionEngine) disarmTimer(ctx context.Context, id string) {
	if svc.timer == nil {
		return
	}
	if err := svc.timer.Disarm(ctx, id); err != nil {
		zap.L().Warn("deadline timer disarm failed", zap.String("auction_id", id), zap.Error(err))
	}
}
