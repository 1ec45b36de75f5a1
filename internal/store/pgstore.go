package store

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"shopbidgo/internal/auction"
)

//go:embed schema.sql
var schemaSQL string

// PGStore persists auctions as single versioned rows; the bid history
// rides along as JSONB so a commit is always one atomic row write.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

// EnsureSchema creates the tables if they do not exist yet.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const auctionColumns = `id, shop_id, product_ref, start_time, end_time,
       starting_bid, current_bid, buy_now_price, reserve_price,
       status, bid_history, popcorn_enabled, popcorn_trigger_seconds,
       popcorn_extend_seconds, winner, winner_processed, version`

func (s *PGStore) Create(ctx context.Context, a *auction.Auction) error {
	history, winner, err := marshalJSONFields(a)
	if err != nil {
		return err
	}
	const q = `
	  INSERT INTO auctions (id, shop_id, product_ref, start_time, end_time,
	                        starting_bid, current_bid, buy_now_price, reserve_price,
	                        status, bid_history, popcorn_enabled, popcorn_trigger_seconds,
	                        popcorn_extend_seconds, winner, winner_processed, version)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = s.db.ExecContext(ctx, q,
		a.ID, a.ShopID, a.ProductRef, a.StartTime, a.EndTime,
		a.StartingBid, a.CurrentBid, nullDecimal(a.BuyNowPrice), nullDecimal(a.ReservePrice),
		string(a.Status), history, a.Popcorn.Enabled, a.Popcorn.TriggerSeconds,
		a.Popcorn.ExtendSeconds, winner, a.WinnerProcessed, a.Version,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*auction.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	return scanAuction(row)
}

// ConditionalWrite is the single mutation primitive: the whole snapshot
// is written back iff the stored version still matches. Zero rows
// affected means somebody else committed first.
func (s *PGStore) ConditionalWrite(ctx context.Context, expected int64, a *auction.Auction) error {
	history, winner, err := marshalJSONFields(a)
	if err != nil {
		return err
	}
	const q = `
	  UPDATE auctions
	     SET start_time = $3, end_time = $4, starting_bid = $5, current_bid = $6,
	         buy_now_price = $7, reserve_price = $8, status = $9, bid_history = $10,
	         popcorn_enabled = $11, popcorn_trigger_seconds = $12,
	         popcorn_extend_seconds = $13, winner = $14, winner_processed = $15,
	         version = $16, updated_at = now()
	   WHERE id = $1 AND version = $2`
	res, err := s.db.ExecContext(ctx, q,
		a.ID, expected,
		a.StartTime, a.EndTime, a.StartingBid, a.CurrentBid,
		nullDecimal(a.BuyNowPrice), nullDecimal(a.ReservePrice),
		string(a.Status), history,
		a.Popcorn.Enabled, a.Popcorn.TriggerSeconds, a.Popcorn.ExtendSeconds,
		winner, a.WinnerProcessed, a.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Stale version or vanished row; tell the caller which.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *PGStore) QueryByStatusAndTime(ctx context.Context, st auction.Status, until time.Time) ([]*auction.Auction, error) {
	col := "end_time"
	if st == auction.StatusPending {
		col = "start_time"
	}
	q := `SELECT ` + auctionColumns + ` FROM auctions
	       WHERE status = $1 AND ` + col + ` <= $2 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, string(st), until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuctions(rows)
}

func (s *PGStore) QueryUnprocessed(ctx context.Context) ([]*auction.Auction, error) {
	const q = `SELECT ` + auctionColumns + ` FROM auctions
	            WHERE status IN ('ended','closed') AND NOT winner_processed ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuctions(rows)
}

func (s *PGStore) ListByShop(ctx context.Context, shopID string, st auction.Status, limit, offset int) ([]*auction.Auction, error) {
	if limit <= 0 {
		limit = 10
	}
	base := `SELECT ` + auctionColumns + ` FROM auctions`
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case shopID != "" && st != "":
		rows, err = s.db.QueryContext(ctx, base+` WHERE shop_id = $1 AND status = $2
		    ORDER BY end_time DESC LIMIT $3 OFFSET $4`, shopID, string(st), limit, offset)
	case shopID != "":
		rows, err = s.db.QueryContext(ctx, base+` WHERE shop_id = $1
		    ORDER BY end_time DESC LIMIT $2 OFFSET $3`, shopID, limit, offset)
	case st != "":
		rows, err = s.db.QueryContext(ctx, base+` WHERE status = $1
		    ORDER BY end_time DESC LIMIT $2 OFFSET $3`, string(st), limit, offset)
	default:
		rows, err = s.db.QueryContext(ctx, base+`
		    ORDER BY end_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuctions(rows)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	// The bid-history guard lives in SQL so it also holds across
	// instances that skipped the engine's precondition check.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auctions WHERE id = $1 AND jsonb_array_length(bid_history) = 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrHasBids
		}
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AppendEvents(ctx context.Context, recs []EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const ins = `INSERT INTO auction_events (auction_id, version, event_type, payload, emitted_at)
	                  VALUES ($1, $2, $3, $4, $5)
	             ON CONFLICT DO NOTHING`
	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, ins,
			rec.AuctionID, rec.Version, rec.Type, rec.Payload, rec.EmittedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) EventsSince(ctx context.Context, auctionID string, sinceVersion int64, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT auction_id, version, event_type, payload, emitted_at
	             FROM auction_events
	            WHERE auction_id = $1 AND version > $2
	            ORDER BY version ASC LIMIT $3`
	rows, err := s.db.QueryContext(ctx, q, auctionID, sinceVersion, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.AuctionID, &rec.Version, &rec.Type, &rec.Payload, &rec.EmittedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// helpers

func marshalJSONFields(a *auction.Auction) (history, winner []byte, err error) {
	history, err = json.Marshal(a.BidHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal bid history: %w", err)
	}
	if a.Winner != nil {
		winner, err = json.Marshal(a.Winner)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal winner: %w", err)
		}
	}
	return history, winner, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a       auction.Auction
		status  string
		history []byte
		winner  []byte
		buyNow  decimal.NullDecimal
		reserve decimal.NullDecimal
	)
	err := row.Scan(
		&a.ID, &a.ShopID, &a.ProductRef, &a.StartTime, &a.EndTime,
		&a.StartingBid, &a.CurrentBid, &buyNow, &reserve,
		&status, &history, &a.Popcorn.Enabled, &a.Popcorn.TriggerSeconds,
		&a.Popcorn.ExtendSeconds, &winner, &a.WinnerProcessed, &a.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = auction.Status(status)
	if buyNow.Valid {
		a.BuyNowPrice = &buyNow.Decimal
	}
	if reserve.Valid {
		a.ReservePrice = &reserve.Decimal
	}
	if err := json.Unmarshal(history, &a.BidHistory); err != nil {
		return nil, fmt.Errorf("unmarshal bid history: %w", err)
	}
	if len(winner) > 0 {
		a.Winner = &auction.Winner{}
		if err := json.Unmarshal(winner, a.Winner); err != nil {
			return nil, fmt.Errorf("unmarshal winner: %w", err)
		}
	}
	return &a, nil
}

func scanAuctions(rows *sql.Rows) ([]*auction.Auction, error) {
	var out []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
