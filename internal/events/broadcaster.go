package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// StreamKey is the Redis stream every committed event is appended to.
// The journal tailer drains it into Postgres for replay and admin polling.
const StreamKey = "auction_events"

// ChannelFor returns the pub/sub channel carrying one auction's events.
func ChannelFor(auctionID string) string {
	return "auction:" + auctionID + ":events"
}

// Broadcaster delivers one committed event. Implementations must not be
// able to fail the mutation that produced the event; callers log and
// move on, the stream journal is the recovery path.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisBroadcaster fans an event out over pub/sub for connected viewers
// and appends it to the durable stream in a single pipeline round trip.
type RedisBroadcaster struct {
	rdc *redis.Client
}

func NewRedisBroadcaster(rdc *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdc: rdc}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := b.rdc.Pipeline()
	pipe.Publish(ctx, ChannelFor(ev.AuctionID), string(payload))
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: []interface{}{
			"aid", ev.AuctionID,
			"ver", ev.Version,
			"type", string(ev.Type),
			"payload", string(payload),
			"at", ev.At.UnixMilli(),
		},
	})
	_, err = pipe.Exec(ctx)
	return err
}
