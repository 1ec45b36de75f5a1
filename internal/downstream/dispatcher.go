package downstream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopbidgo/internal/auction"
)

// Dispatcher runs winner hand-offs asynchronously with capped
// exponential backoff. A hand-off that exhausts its attempts is logged
// and dropped; the auction record stays settled either way.
type Dispatcher struct {
	notifier   WinnerNotifier
	restrictor ProductRestrictor
	attempts   int
	baseDelay  time.Duration
	wg         sync.WaitGroup
}

func NewDispatcher(n WinnerNotifier, r ProductRestrictor, attempts int, baseDelay time.Duration) *Dispatcher {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &Dispatcher{notifier: n, restrictor: r, attempts: attempts, baseDelay: baseDelay}
}

// WinnerDecided schedules the notification and restriction hand-offs
// for a freshly settled auction. It copies what it needs and returns
// immediately.
func (d *Dispatcher) WinnerDecided(a *auction.Auction) {
	if a.Winner == nil {
		return
	}
	auctionID, productRef, w := a.ID, a.ProductRef, *a.Winner

	if d.notifier != nil {
		d.spawn("notify_winner", auctionID, func(ctx context.Context) error {
			return d.notifier.NotifyWinner(ctx, auctionID, w)
		})
	}
	if d.restrictor != nil {
		d.spawn("restrict_product", auctionID, func(ctx context.Context) error {
			return d.restrictor.RestrictProduct(ctx, productRef, w.BidderID)
		})
	}
}

func (d *Dispatcher) spawn(name, auctionID string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		delay := d.baseDelay
		for attempt := 1; attempt <= d.attempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := fn(ctx)
			cancel()
			if err == nil {
				return
			}
			zap.L().Warn("downstream hand-off failed",
				zap.String("op", name),
				zap.String("auction_id", auctionID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt == d.attempts {
				return
			}
			time.Sleep(delay)
			delay *= 2
		}
	}()
}

// Wait blocks until every in-flight hand-off has finished. Used on
// shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
