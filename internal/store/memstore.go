package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopbidgo/internal/auction"
)

// MemStore keeps everything in process memory. It honors the exact same
// version contract as the Postgres store, which makes it the reference
// implementation for engine tests and good enough for single-process
// embedded deployments.
type MemStore struct {
	mu       sync.RWMutex
	auctions map[string]*auction.Auction
	events   map[string][]EventRecord
}

func NewMemStore() *MemStore {
	return &MemStore{
		auctions: make(map[string]*auction.Auction),
		events:   make(map[string][]EventRecord),
	}
}

func (m *MemStore) Create(_ context.Context, a *auction.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[a.ID]; ok {
		return ErrAlreadyExists
	}
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MemStore) ConditionalWrite(_ context.Context, expected int64, a *auction.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.auctions[a.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expected {
		return ErrVersionConflict
	}
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *MemStore) QueryByStatusAndTime(_ context.Context, st auction.Status, until time.Time) ([]*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*auction.Auction
	for _, a := range m.auctions {
		if a.Status != st {
			continue
		}
		deadline := a.EndTime
		if st == auction.StatusPending {
			deadline = a.StartTime
		}
		if !deadline.After(until) {
			out = append(out, a.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemStore) QueryUnprocessed(_ context.Context) ([]*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*auction.Auction
	for _, a := range m.auctions {
		if (a.Status == auction.StatusEnded || a.Status == auction.StatusClosed) && !a.WinnerProcessed {
			out = append(out, a.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemStore) ListByShop(_ context.Context, shopID string, st auction.Status, limit, offset int) ([]*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*auction.Auction
	for _, a := range m.auctions {
		if shopID != "" && a.ShopID != shopID {
			continue
		}
		if st != "" && a.Status != st {
			continue
		}
		all = append(all, a.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EndTime.After(all[j].EndTime) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return ErrNotFound
	}
	if len(a.BidHistory) > 0 {
		return ErrHasBids
	}
	delete(m.auctions, id)
	delete(m.events, id)
	return nil
}

func (m *MemStore) AppendEvents(_ context.Context, recs []EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		dup := false
		for _, have := range m.events[rec.AuctionID] {
			if have.Version == rec.Version {
				dup = true
				break
			}
		}
		if !dup {
			m.events[rec.AuctionID] = append(m.events[rec.AuctionID], rec)
		}
	}
	return nil
}

func (m *MemStore) EventsSince(_ context.Context, auctionID string, sinceVersion int64, limit int) ([]EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []EventRecord
	for _, rec := range m.events[auctionID] {
		if rec.Version > sinceVersion {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func sortByID(as []*auction.Auction) {
	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
}
