package market_regime

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/rs/zerolog"
)

// RegimePersistence stores regime transitions in market_regime_history
type RegimePersistence struct {
	db  *sql.DB
	log zerolog.Logger
}

// RegimeHistoryEntry represents a single recorded transition
type RegimeHistoryEntry struct {
	ID                   int64         `json:"id"`
	RecordedAt           time.Time     `json:"recorded_at"`
	PreviousRegime       domain.Regime `json:"previous_regime"`
	Regime               domain.Regime `json:"regime"`
	VIX                  float64       `json:"vix"`
	DriftMultiplier      float64       `json:"drift_multiplier"`
	VolatilityMultiplier float64       `json:"volatility_multiplier"`
	Reason               string        `json:"reason"`
}

// NewRegimePersistence creates a new regime persistence manager
func NewRegimePersistence(db *sql.DB, log zerolog.Logger) *RegimePersistence {
	return &RegimePersistence{
		db:  db,
		log: log.With().Str("component", "regime_persistence").Logger(),
	}
}

// RecordTransition inserts one transition; it satisfies RegimeRecorder
func (rp *RegimePersistence) RecordTransition(change RegimeChange) error {
	query := `INSERT INTO market_regime_history
	          (recorded_at, previous_regime, regime, vix, drift_multiplier, volatility_multiplier, reason)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := rp.db.Exec(query,
		change.At.Unix(),
		string(change.From),
		string(change.To),
		change.VIX,
		change.Adjustment.DriftMultiplier,
		change.Adjustment.VolatilityMultiplier,
		change.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record regime transition: %w", err)
	}

	rp.log.Debug().
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Msg("Recorded regime transition")
	return nil
}

// GetRegimeHistory returns the most recent transitions, newest first
func (rp *RegimePersistence) GetRegimeHistory(limit int) ([]RegimeHistoryEntry, error) {
	query := `SELECT id, recorded_at, previous_regime, regime, vix, drift_multiplier, volatility_multiplier, reason
	          FROM market_regime_history
	          ORDER BY recorded_at DESC, id DESC
	          LIMIT ?`

	rows, err := rp.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime history: %w", err)
	}
	defer rows.Close()

	entries := make([]RegimeHistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLatestEntry returns the most recent transition, or nil when none is recorded
func (rp *RegimePersistence) GetLatestEntry() (*RegimeHistoryEntry, error) {
	query := `SELECT id, recorded_at, previous_regime, regime, vix, drift_multiplier, volatility_multiplier, reason
	          FROM market_regime_history
	          ORDER BY id DESC
	          LIMIT 1`

	entry, err := scanEntry(rp.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetEntryAtOrBeforeDate returns the last transition recorded at or before t,
// or nil when none exists
func (rp *RegimePersistence) GetEntryAtOrBeforeDate(t time.Time) (*RegimeHistoryEntry, error) {
	query := `SELECT id, recorded_at, previous_regime, regime, vix, drift_multiplier, volatility_multiplier, reason
	          FROM market_regime_history
	          WHERE recorded_at <= ?
	          ORDER BY recorded_at DESC, id DESC
	          LIMIT 1`

	entry, err := scanEntry(rp.db.QueryRow(query, t.Unix()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// PruneOlderThan deletes transitions recorded before cutoff and returns how many were removed
func (rp *RegimePersistence) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := rp.db.Exec(`DELETE FROM market_regime_history WHERE recorded_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune regime history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		rp.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned regime history")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*RegimeHistoryEntry, error) {
	var entry RegimeHistoryEntry
	var recordedAtUnix sql.NullInt64
	var previous, regime string

	if err := row.Scan(
		&entry.ID,
		&recordedAtUnix,
		&previous,
		&regime,
		&entry.VIX,
		&entry.DriftMultiplier,
		&entry.VolatilityMultiplier,
		&entry.Reason,
	); err != nil {
		return nil, err
	}

	if recordedAtUnix.Valid {
		entry.RecordedAt = time.Unix(recordedAtUnix.Int64, 0).UTC()
	}
	entry.PreviousRegime = domain.Regime(previous)
	entry.Regime = domain.Regime(regime)
	return &entry, nil
}
