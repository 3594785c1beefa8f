package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/mcrisk/internal/contracts"
)

// PriceRepository stores daily price history in data.daily_prices
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetHistory retrieves prices for a ticker within [from, to], oldest first.
// A zero from means no lower bound.
func (r *PriceRepository) GetHistory(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT trade_date, close_price, COALESCE(adj_close, 0)
		FROM data.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	if from.IsZero() {
		from = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", ticker, err)
	}
	defer rows.Close()

	var points []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Close, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("scan history %s: %w", ticker, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// LatestDate returns the most recent stored trade date for a ticker
func (r *PriceRepository) LatestDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	query := `SELECT MAX(trade_date) FROM data.daily_prices WHERE ticker = $1`

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, query, ticker).Scan(&latest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query latest date %s: %w", ticker, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// SaveBatch upserts price points for a ticker in one round trip
func (r *PriceRepository) SaveBatch(ctx context.Context, ticker string, points []contracts.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO data.daily_prices (ticker, trade_date, close_price, adj_close, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, 0), NOW())
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			adj_close = EXCLUDED.adj_close,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, ticker, p.Date, p.Close, p.AdjClose)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("save price %s %s: %w", ticker, points[i].Date.Format("2006-01-02"), err)
		}
	}
	return len(points), nil
}

// Tickers returns every ticker with stored history
func (r *PriceRepository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ticker FROM data.daily_prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowTo[string])
}
