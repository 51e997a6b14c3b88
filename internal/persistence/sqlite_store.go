package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tradesim/internal/domain"
)

// DefaultSnapshotKey is the state_snapshots row used by the service
const DefaultSnapshotKey = "current"

// SQLiteStore keeps the blob in the state_snapshots table of state.db
type SQLiteStore struct {
	db    *sql.DB
	key   string
	codec string
	now   func() time.Time
}

// NewSQLiteStore creates a store writing row key. codec is recorded with each
// save and checked on load.
func NewSQLiteStore(db *sql.DB, key, codec string) *SQLiteStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &SQLiteStore{db: db, key: key, codec: codec, now: time.Now}
}

func (s *SQLiteStore) Name() string { return BackendSQLite }

func (s *SQLiteStore) Save(ctx context.Context, blob []byte) error {
	query := `
		INSERT INTO state_snapshots (key, codec, payload, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			codec = excluded.codec,
			payload = excluded.payload,
			saved_at = excluded.saved_at
	`
	if _, err := s.db.ExecContext(ctx, query, s.key, s.codec, blob, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to save state snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var codec string
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT codec, payload FROM state_snapshots WHERE key = ?", s.key,
	).Scan(&codec, &blob)
	if err == sql.ErrNoRows {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state snapshot: %w", err)
	}
	if s.codec != "" && codec != s.codec {
		return nil, domain.NewStateLoadError(fmt.Sprintf("snapshot was saved with codec %q, configured codec is %q", codec, s.codec), nil)
	}
	return blob, nil
}

// SavedAt returns when the snapshot was last written, or nil when there is none
func (s *SQLiteStore) SavedAt(ctx context.Context) (*time.Time, error) {
	var unix int64
	err := s.db.QueryRowContext(ctx, "SELECT saved_at FROM state_snapshots WHERE key = ?", s.key).Scan(&unix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot time: %w", err)
	}
	t := time.Unix(unix, 0).UTC()
	return &t, nil
}
