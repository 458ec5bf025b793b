package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertPriceSQL = `INSERT INTO prices (chain, price, ts)
    VALUES ($1, $2, $3)
    RETURNING id, chain, price, ts;`

	earliestPriceSinceSQL = `SELECT id, chain, price, ts
    FROM prices
    WHERE chain = $1
      AND ts >= $2
    ORDER BY ts ASC, id ASC
    LIMIT 1;`

	latestPriceSQL = `SELECT id, chain, price, ts
    FROM prices
    WHERE chain = $1
    ORDER BY ts DESC, id DESC
    LIMIT 1;`

	listPricesSinceSQL = `SELECT id, chain, price, ts
    FROM prices
    WHERE ts >= $1
    ORDER BY ts DESC, id DESC;`

	listPricesBetweenSQL = `SELECT id, chain, price, ts
    FROM prices
    WHERE chain = $1
      AND ts >= $2
      AND ts < $3
    ORDER BY ts ASC, id ASC;`

	listRecentPricesSQL = `SELECT id, chain, price, ts
    FROM prices
    ORDER BY ts DESC, id DESC
    LIMIT $1;`
)

// InsertPrice appends one observed price record.
func (s *Store) InsertPrice(ctx context.Context, chain string, price decimal.Decimal, ts time.Time) (PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceRecord{}, err
	}

	row := pool.QueryRow(ctx, insertPriceSQL, chain, price.String(), ts)
	record, err := scanPriceRecord(row)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("insert price: %w", err)
	}
	return record, nil
}

// EarliestPriceSince returns the oldest record for chain with ts >= since,
// or nil when the window is empty. Ties resolve to the lowest id.
func (s *Store) EarliestPriceSince(ctx context.Context, chain string, since time.Time) (*PriceRecord, error) {
	return s.queryOnePrice(ctx, earliestPriceSinceSQL, chain, since)
}

// LatestPrice returns the most recent record for chain, or nil when the chain
// has never been sampled. Ties resolve to the highest id.
func (s *Store) LatestPrice(ctx context.Context, chain string) (*PriceRecord, error) {
	return s.queryOnePrice(ctx, latestPriceSQL, chain)
}

// ListPricesSince returns records of every chain with ts >= since, newest first.
func (s *Store) ListPricesSince(ctx context.Context, since time.Time) ([]PriceRecord, error) {
	return s.queryPrices(ctx, listPricesSinceSQL, since)
}

// ListPricesBetween returns one chain's records within [from, to), oldest first.
func (s *Store) ListPricesBetween(ctx context.Context, chain string, from, to time.Time) ([]PriceRecord, error) {
	return s.queryPrices(ctx, listPricesBetweenSQL, chain, from, to)
}

// ListRecentPrices returns the newest records across all chains.
func (s *Store) ListRecentPrices(ctx context.Context, limit int) ([]PriceRecord, error) {
	return s.queryPrices(ctx, listRecentPricesSQL, limit)
}

func (s *Store) queryOnePrice(ctx context.Context, sql string, args ...any) (*PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, sql, args...)
	record, err := scanPriceRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query price: %w", err)
	}
	return &record, nil
}

func (s *Store) queryPrices(ctx context.Context, sql string, args ...any) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PriceRecord, 0)
	for rows.Next() {
		record, scanErr := scanPriceRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanPriceRecord(row pgx.Row) (PriceRecord, error) {
	var (
		record   PriceRecord
		priceStr string
	)

	if err := row.Scan(&record.ID, &record.Chain, &priceStr, &record.Timestamp); err != nil {
		return PriceRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse price: %w", err)
	}
	record.Price = price

	return record, nil
}
