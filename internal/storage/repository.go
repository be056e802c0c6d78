package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const alertColumns = `
        id,
        event_id::text,
        symbol,
        pair,
        chain_id,
        pair_address,
        direction,
        threshold_pct,
        change_pct,
        price_usd::text,
        dashboard_url,
        fired_at,
        created_at`

const (
	insertAlertSQL = `INSERT INTO alerts (
        event_id,
        symbol,
        pair,
        chain_id,
        pair_address,
        direction,
        threshold_pct,
        change_pct,
        price_usd,
        dashboard_url,
        fired_at
    ) VALUES (
        $1::uuid,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10,$11
    )
    ON CONFLICT (event_id) DO UPDATE
    SET event_id = EXCLUDED.event_id
    RETURNING` + alertColumns + `;`

	listRecentAlertsSQL = `SELECT` + alertColumns + `
    FROM alerts
    WHERE ($1 = '' OR symbol = $1)
    ORDER BY fired_at DESC
    LIMIT $2;`

	listAlertsBetweenSQL = `SELECT` + alertColumns + `
    FROM alerts
    WHERE fired_at >= $1
      AND fired_at < $2
      AND ($3 = '' OR symbol = $3)
    ORDER BY fired_at;`

	countAlertsSQL = `SELECT COUNT(*) FROM alerts;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE fired_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, symbol string, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, symbol string, from, to time.Time) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
	CountAlerts(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store wraps the alert audit table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a session advisory lock on a dedicated
// connection and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the session lock is dropped with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert persists an alert emission. Re-inserting the same event id is a no-op.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.EventID.String(),
		alert.Symbol,
		alert.Pair,
		alert.ChainID,
		alert.PairAddress,
		alert.Direction,
		alert.ThresholdPct,
		alert.ChangePct,
		alert.PriceUSD.String(),
		alert.DashboardURL,
		alert.FiredAt,
	)

	rec, err := scanAlert(row)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

// ListRecentAlerts lists the newest alerts, optionally for one symbol.
func (s *Store) ListRecentAlerts(ctx context.Context, symbol string, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists alerts fired within [from, to), oldest first.
func (s *Store) ListAlertsBetween(ctx context.Context, symbol string, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	return collectAlerts(rows, 0)
}

// CountAlerts counts stored alerts.
func (s *Store) CountAlerts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAlertsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts: %w", scanErr)
	}
	return count, nil
}

// DeleteAlertsBefore deletes historical alerts and reports how many were removed.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func collectAlerts(rows pgx.Rows, capacity int) ([]AlertRecord, error) {
	defer rows.Close()

	alerts := make([]AlertRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec      AlertRecord
		eventID  string
		priceStr string
	)

	if err := row.Scan(
		&rec.ID,
		&eventID,
		&rec.Symbol,
		&rec.Pair,
		&rec.ChainID,
		&rec.PairAddress,
		&rec.Direction,
		&rec.ThresholdPct,
		&rec.ChangePct,
		&priceStr,
		&rec.DashboardURL,
		&rec.FiredAt,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	rec.EventID, err = uuid.Parse(eventID)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse event id: %w", err)
	}
	rec.PriceUSD, err = decimal.NewFromString(priceStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse price usd: %w", err)
	}
	return rec, nil
}

var _ AlertStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
