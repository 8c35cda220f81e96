package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adscrub/internal/domain"
)

// PostgresStore persists per-cycle scan records and serves per-domain
// aggregates.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// Record saves one completed scan cycle.
func (s *PostgresStore) Record(ctx context.Context, rec domain.ScanRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO scan_records (url, domain, ads_blocked, total_scanned, fallback, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.URL, rec.Domain, rec.AdsBlocked, rec.TotalScanned, rec.Fallback, rec.CreatedAt,
	)
	return err
}

// DomainStats aggregates scan history for one domain.
func (s *PostgresStore) DomainStats(ctx context.Context, dom string) (*domain.DomainStats, error) {
	var stats domain.DomainStats
	err := s.db.QueryRow(ctx,
		`SELECT domain, COUNT(*), COALESCE(SUM(ads_blocked), 0), MAX(created_at)
		 FROM scan_records WHERE domain = $1 GROUP BY domain`,
		dom,
	).Scan(&stats.Domain, &stats.Scans, &stats.AdsBlocked, &stats.LastScan)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("not_found")
	}
	return &stats, err
}
