// Package eventjournal tails the auction_events Redis stream into the
// durable journal table. The journal backs the version catch-up
// endpoint, so a viewer with no live connection can still page forward
// from the last version it applied.
package eventjournal

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopbidgo/internal/events"
	"shopbidgo/internal/store"
)

const batchSize = 100

var errMalformed = errors.New("malformed stream entry")

// Run tails the stream and persists every committed event. Replays
// from the stream head on boot; (auction_id, version) dedupe in the
// journal makes that harmless.
func Run(ctx context.Context, rdc *redis.Client, journal store.EventJournal) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{events.StreamKey, lastID},
				Count:   batchSize,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("eventjournal.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}

			msgs := res[0].Messages
			if err := persist(ctx, journal, msgs); err != nil {
				// keep the cursor so the batch is retried
				zap.L().Error("eventjournal.persist", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			lastID = msgs[len(msgs)-1].ID
		}
	}()
}

func persist(ctx context.Context, journal store.EventJournal, msgs []redis.XMessage) error {
	recs := make([]store.EventRecord, 0, len(msgs))
	for _, m := range msgs {
		rec, err := recordFrom(m)
		if err != nil {
			zap.L().Warn("eventjournal.skip_entry", zap.String("stream_id", m.ID), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil
	}
	return journal.AppendEvents(ctx, recs)
}

func recordFrom(m redis.XMessage) (store.EventRecord, error) {
	aid, _ := m.Values["aid"].(string)
	verStr, _ := m.Values["ver"].(string)
	typ, _ := m.Values["type"].(string)
	payload, _ := m.Values["payload"].(string)
	atStr, _ := m.Values["at"].(string)

	if aid == "" || verStr == "" {
		return store.EventRecord{}, errMalformed
	}
	ver, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return store.EventRecord{}, errMalformed
	}
	atMs, _ := strconv.ParseInt(atStr, 10, 64)

	return store.EventRecord{
		AuctionID: aid,
		Version:   ver,
		Type:      typ,
		Payload:   []byte(payload),
		EmittedAt: time.UnixMilli(atMs).UTC(),
	}, nil
}
