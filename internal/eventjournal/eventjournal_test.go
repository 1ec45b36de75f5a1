package eventjournal

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbidgo/internal/store"
)

func streamMsg(id, aid, ver, typ, payload, at string) redis.XMessage {
	return redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			"aid":     aid,
			"ver":     ver,
			"type":    typ,
			"payload": payload,
			"at":      at,
		},
	}
}

func TestRecordFrom(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	msg := streamMsg("1-0", "a1", "4", "bid-placed", `{"event":"bid-placed"}`, "1787486400000")

	rec, err := recordFrom(msg)
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.AuctionID)
	assert.Equal(t, int64(4), rec.Version)
	assert.Equal(t, "bid-placed", rec.Type)
	assert.JSONEq(t, `{"event":"bid-placed"}`, string(rec.Payload))
	assert.Equal(t, at, rec.EmittedAt)
}

func TestRecordFromRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		msg  redis.XMessage
	}{
		{"missing auction id", streamMsg("1-0", "", "4", "bid-placed", "{}", "0")},
		{"missing version", streamMsg("1-0", "a1", "", "bid-placed", "{}", "0")},
		{"non-numeric version", streamMsg("1-0", "a1", "four", "bid-placed", "{}", "0")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := recordFrom(tc.msg)
			assert.ErrorIs(t, err, errMalformed)
		})
	}
}

func TestPersistSkipsMalformedEntries(t *testing.T) {
	ms := store.NewMemStore()
	msgs := []redis.XMessage{
		streamMsg("1-0", "a1", "2", "bid-placed", "{}", "1787486400000"),
		streamMsg("2-0", "", "3", "bid-placed", "{}", "1787486400000"),
		streamMsg("3-0", "a1", "3", "status-changed", "{}", "1787486400000"),
	}

	require.NoError(t, persist(context.Background(), ms, msgs))

	recs, err := ms.EventsSince(context.Background(), "a1", 0, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].Version)
	assert.Equal(t, int64(3), recs[1].Version)
}

func TestPersistOnlyMalformedIsNoop(t *testing.T) {
	ms := store.NewMemStore()
	msgs := []redis.XMessage{streamMsg("1-0", "", "", "", "", "")}

	require.NoError(t, persist(context.Background(), ms, msgs))

	recs, err := ms.EventsSince(context.Background(), "a1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPersistRedeliveryIsIdempotent(t *testing.T) {
	ms := store.NewMemStore()
	msgs := []redis.XMessage{
		streamMsg("1-0", "a1", "2", "bid-placed", `{"n":1}`, "1787486400000"),
	}

	// replaying from the stream head delivers the same entries again
	require.NoError(t, persist(context.Background(), ms, msgs))
	require.NoError(t, persist(context.Background(), ms, msgs))

	recs, err := ms.EventsSince(context.Background(), "a1", 0, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].Version)
}
