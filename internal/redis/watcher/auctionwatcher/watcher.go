// Package auctionwatcher turns auction deadlines into Redis key
// expiries. The engine arms one timer key per active auction; when it
// expires, the watcher requests the ended transition. The scheduler
// sweep remains the correctness backstop, a lost expiry only costs
// latency.
package auctionwatcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopbidgo/internal/auction"
)

const timerKeyPrefix = "auction_timer:"

// TimerKey returns the expiring key carrying one auction's deadline.
func TimerKey(auctionID string) string { return timerKeyPrefix + auctionID }

// Ender is the slice of the engine the watcher drives.
type Ender interface {
	EndAuction(ctx context.Context, auctionID string) (*auction.Auction, error)
}

// Timer arms and disarms deadline keys. Implements the engine's
// DeadlineTimer.
type Timer struct {
	rdb   *redis.Client
	nowFn func() time.Time
}

func NewTimer(rdb *redis.Client) *Timer {
	return &Timer{rdb: rdb, nowFn: time.Now}
}

func (t *Timer) ArmEnd(ctx context.Context, auctionID string, endTime time.Time) error {
	ttl := endTime.Sub(t.nowFn())
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return t.rdb.Set(ctx, TimerKey(auctionID), 1, ttl).Err()
}

func (t *Timer) Disarm(ctx context.Context, auctionID string) error {
	return t.rdb.Del(ctx, TimerKey(auctionID)).Err()
}

// Run listens to key-expiry events and ends overdue auctions. Run
// blocks; start it once at service boot on its own goroutine.
func Run(ctx context.Context, rdb *redis.Client, eng Ender) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			handleExpiry(ctx, eng, m.Payload)
		}
	}
}

func handleExpiry(ctx context.Context, eng Ender, key string) {
	if !strings.HasPrefix(key, timerKeyPrefix) {
		return
	}
	id := strings.TrimPrefix(key, timerKeyPrefix)
	_, err := eng.EndAuction(ctx, id)
	if err == nil {
		return
	}
	// Buy-now, admin close or the sweep may have beaten the timer.
	if errors.Is(err, auction.ErrInvalidTransition) || errors.Is(err, auction.ErrNotFound) {
		zap.L().Debug("watcher.already_handled", zap.String("auction_id", id))
		return
	}
	zap.L().Warn("watcher.end_auction", zap.String("auction_id", id), zap.Error(err))
}
