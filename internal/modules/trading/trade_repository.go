package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradeRepository writes the audit trail of executed trades to ledger.db.
// The in-memory ledger stays authoritative; this table is append-only history.
type TradeRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// tradesColumns must match the scan order in scanTrade
const tradesColumns = `id, symbol, side, order_type, quantity, price, fee, total, executed_at`

// NewTradeRepository creates a new trade repository
func NewTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade").Logger(),
	}
}

// Create inserts one executed trade. A trade whose id is already stored is skipped.
func (r *TradeRepository) Create(tx portfolio.Transaction) error {
	if err := validateTransaction(tx); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	exists, err := r.Exists(tx.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing trade: %w", err)
	}
	if exists {
		r.log.Debug().Str("trade_id", tx.ID).Msg("Trade already recorded, skipping duplicate")
		return nil
	}

	orderType := tx.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeMarket
	}

	query := `
		INSERT INTO trades (` + tradesColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.ledgerDB.Exec(query,
		tx.ID,
		strings.ToUpper(strings.TrimSpace(tx.Symbol)),
		string(tx.Side),
		string(orderType),
		tx.Quantity,
		tx.Price.InexactFloat64(),
		tx.Fee.String(),
		tx.Total.String(),
		tx.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	r.log.Debug().
		Str("trade_id", tx.ID).
		Str("symbol", tx.Symbol).
		Str("side", string(tx.Side)).
		Int64("quantity", tx.Quantity).
		Msg("Trade recorded")
	return nil
}

func validateTransaction(tx portfolio.Transaction) error {
	if tx.ID == "" {
		return errors.New("trade id is required")
	}
	if strings.TrimSpace(tx.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if tx.Side != domain.SideBuy && tx.Side != domain.SideSell {
		return fmt.Errorf("invalid side %q", tx.Side)
	}
	if tx.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", tx.Quantity)
	}
	if !tx.Price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", tx.Price)
	}
	return nil
}

// Exists reports whether a trade with id is stored
func (r *TradeRepository) Exists(id string) (bool, error) {
	var one int
	err := r.ledgerDB.QueryRow("SELECT 1 FROM trades WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return true, nil
}

// GetByID returns one trade, or nil when it is not stored
func (r *TradeRepository) GetByID(id string) (*portfolio.Transaction, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE id = ?"

	tx, err := scanTrade(r.ledgerDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &tx, nil
}

// GetHistory returns up to limit trades, most recent first
func (r *TradeRepository) GetHistory(limit int) ([]portfolio.Transaction, error) {
	query := `
		SELECT ` + tradesColumns + ` FROM trades
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`
	return r.queryTrades(query, limit)
}

// GetBySymbol returns up to limit trades for symbol, most recent first
func (r *TradeRepository) GetBySymbol(symbol string, limit int) ([]portfolio.Transaction, error) {
	query := `
		SELECT ` + tradesColumns + ` FROM trades
		WHERE symbol = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`
	return r.queryTrades(query, strings.ToUpper(strings.TrimSpace(symbol)), limit)
}

// GetLastTradeTimestamp returns the execution time of the newest trade, or nil when there is none
func (r *TradeRepository) GetLastTradeTimestamp() (*time.Time, error) {
	var ms sql.NullInt64
	if err := r.ledgerDB.QueryRow("SELECT MAX(executed_at) FROM trades").Scan(&ms); err != nil {
		return nil, fmt.Errorf("failed to get last trade timestamp: %w", err)
	}
	if !ms.Valid {
		return nil, nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t, nil
}

// CountSince returns how many trades executed at or after since
func (r *TradeRepository) CountSince(since time.Time) (int, error) {
	var count int
	err := r.ledgerDB.QueryRow("SELECT COUNT(*) FROM trades WHERE executed_at >= ?", since.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// DeleteAll clears the audit trail and returns the number of removed rows
func (r *TradeRepository) DeleteAll() (int64, error) {
	res, err := r.ledgerDB.Exec("DELETE FROM trades")
	if err != nil {
		return 0, fmt.Errorf("failed to delete trades: %w", err)
	}
	return res.RowsAffected()
}

func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]portfolio.Transaction, error) {
	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]portfolio.Transaction, 0)
	for rows.Next() {
		tx, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (portfolio.Transaction, error) {
	var tx portfolio.Transaction
	var side, orderType, fee, total string
	var price float64
	var executedAt int64

	if err := row.Scan(
		&tx.ID,
		&tx.Symbol,
		&side,
		&orderType,
		&tx.Quantity,
		&price,
		&fee,
		&total,
		&executedAt,
	); err != nil {
		return tx, err
	}

	var err error
	if tx.Fee, err = decimal.NewFromString(fee); err != nil {
		return tx, fmt.Errorf("trade %s: invalid fee %q: %w", tx.ID, fee, err)
	}
	if tx.Total, err = decimal.NewFromString(total); err != nil {
		return tx, fmt.Errorf("trade %s: invalid total %q: %w", tx.ID, total, err)
	}
	tx.Side = domain.Side(side)
	tx.OrderType = domain.OrderType(orderType)
	tx.Price = decimal.NewFromFloat(price)
	tx.Timestamp = time.UnixMilli(executedAt).UTC()
	return tx, nil
}
