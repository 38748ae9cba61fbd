package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/BatmanBruc/bat-bot-renamer/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ types.UserStore = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "bot_renamer"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "bot_renamer"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user types.User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (user_id, chat_id, username, first_name, last_name)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
  chat_id = EXCLUDED.chat_id,
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  updated_at = NOW();
`, user.UserID, user.ChatID, strings.TrimSpace(user.Username), strings.TrimSpace(user.FirstName), strings.TrimSpace(user.LastName))
	return err
}

func (s *PostgresStore) SetThumbnail(ctx context.Context, userID int64, fileID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (user_id, thumbnail_file_id)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
  thumbnail_file_id = EXCLUDED.thumbnail_file_id,
  updated_at = NOW();
`, userID, strings.TrimSpace(fileID))
	return err
}

// GetThumbnail returns "" when the user has none.
func (s *PostgresStore) GetThumbnail(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var fileID string
	err := s.pool.QueryRow(ctx, `
SELECT COALESCE(thumbnail_file_id, '')
FROM users
WHERE user_id = $1
`, userID).Scan(&fileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return fileID, nil
}

func (s *PostgresStore) DeleteThumbnail(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE users
SET thumbnail_file_id = NULL, updated_at = NOW()
WHERE user_id = $1
`, userID)
	return err
}

// RecordBatch appends one history row and folds it into the user's totals.
func (s *PostgresStore) RecordBatch(ctx context.Context, rec types.BatchRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO batch_history (user_id, run_id, total, completed, bytes, outcome, elapsed_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (run_id) DO NOTHING
`, rec.UserID, rec.RunID, rec.Total, rec.Completed, int64(rec.Bytes), rec.Outcome, rec.Elapsed.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO user_stats (user_id, total_files, total_bytes, batches)
VALUES ($1, $2, $3, 1)
ON CONFLICT (user_id) DO UPDATE SET
  total_files = user_stats.total_files + EXCLUDED.total_files,
  total_bytes = user_stats.total_bytes + EXCLUDED.total_bytes,
  batches = user_stats.batches + 1,
  updated_at = NOW()
`, rec.UserID, rec.Completed, int64(rec.Bytes))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetStats returns zero totals for users that never finished a batch.
func (s *PostgresStore) GetStats(ctx context.Context, userID int64) (*types.UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	st := types.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx, `
SELECT total_files, total_bytes, batches
FROM user_stats
WHERE user_id = $1
`, userID).Scan(&st.TotalFiles, &st.TotalBytes, &st.Batches)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) RecentBatches(ctx context.Context, userID int64, limit int) ([]types.BatchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT user_id, run_id, total, completed, bytes, outcome, elapsed_ms, created_at
FROM batch_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.BatchRecord
	for rows.Next() {
		var (
			rec       types.BatchRecord
			bytes     int64
			elapsedMS int64
		)
		if err := rows.Scan(&rec.UserID, &rec.RunID, &rec.Total, &rec.Completed, &bytes, &rec.Outcome, &elapsedMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Bytes = uint64(bytes)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
