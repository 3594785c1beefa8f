package s0_data

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/mcrisk/internal/contracts"
)

// HoldingRepository persists holdings in portfolio.holdings
// ⭐ SSOT: 보유 종목 저장소는 여기서만
type HoldingRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.HoldingStore = (*HoldingRepository)(nil)

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(pool *pgxpool.Pool) *HoldingRepository {
	return &HoldingRepository{pool: pool}
}

// List returns all holdings ordered by ticker
func (r *HoldingRepository) List(ctx context.Context) ([]contracts.Holding, error) {
	query := `
		SELECT ticker, quantity, purchase_price, asset_class, sector, updated_at
		FROM portfolio.holdings
		ORDER BY ticker
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	holdings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.Holding, error) {
		var h contracts.Holding
		err := row.Scan(&h.Ticker, &h.Quantity, &h.PurchasePrice, &h.AssetClass, &h.Sector, &h.UpdatedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan holdings: %w", err)
	}
	return holdings, nil
}

// Upsert inserts or replaces a holding
func (r *HoldingRepository) Upsert(ctx context.Context, h contracts.Holding) error {
	if err := ValidateHolding(h); err != nil {
		return err
	}

	query := `
		INSERT INTO portfolio.holdings (ticker, quantity, purchase_price, asset_class, sector, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			purchase_price = EXCLUDED.purchase_price,
			asset_class = EXCLUDED.asset_class,
			sector = EXCLUDED.sector,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		NormalizeTicker(h.Ticker),
		h.Quantity,
		h.PurchasePrice,
		orUnknown(h.AssetClass),
		orUnknown(h.Sector),
	)
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", h.Ticker, err)
	}
	return nil
}

// Delete removes a holding; false when it did not exist
func (r *HoldingRepository) Delete(ctx context.Context, ticker string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM portfolio.holdings WHERE ticker = $1`, NormalizeTicker(ticker))
	if err != nil {
		return false, fmt.Errorf("delete holding %s: %w", ticker, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ValidateHolding checks a holding before it is stored
func ValidateHolding(h contracts.Holding) error {
	if NormalizeTicker(h.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}
	if h.Quantity < 0 {
		return fmt.Errorf("quantity must be >= 0, got %v", h.Quantity)
	}
	if h.PurchasePrice < 0 {
		return fmt.Errorf("purchase price must be >= 0, got %v", h.PurchasePrice)
	}
	return nil
}

// NormalizeTicker trims and upper-cases a ticker
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "UNKNOWN"
	}
	return s
}
