package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sci2zero/cris-exchange/internal/domain"
)

// ResumptionTokenRepository persists harvesting cursors. Tokens are
// write-once; the periodic DeleteExpired sweep stands in for a TTL index.
type ResumptionTokenRepository struct {
	db *pgxpool.Pool
}

func NewResumptionTokenRepository(db *pgxpool.Pool) *ResumptionTokenRepository {
	return &ResumptionTokenRepository{db: db}
}

func (r *ResumptionTokenRepository) Create(ctx context.Context, token *domain.ResumptionToken) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO resumption_tokens (value, expires_at, cursor_offset, complete_list_size, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, token.Value, token.ExpirationDate, token.CursorOffset, token.CompleteListSize)
	return err
}

// Exists reports whether an unexpired token with this value is persisted.
func (r *ResumptionTokenRepository) Exists(ctx context.Context, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM resumption_tokens WHERE value = $1 AND expires_at > NOW())`,
		value,
	).Scan(&exists)
	return exists, err
}

func (r *ResumptionTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ct, err := r.db.Exec(ctx, `DELETE FROM resumption_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Sweep runs DeleteExpired on a fixed interval until ctx is cancelled.
func (r *ResumptionTokenRepository) Sweep(ctx context.Context, interval time.Duration, logf func(string, ...any)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.DeleteExpired(ctx); err != nil {
				logf("WARN: resumption token sweep failed: %v", err)
			} else if n > 0 {
				logf("Swept %d expired resumption tokens", n)
			}
		}
	}
}
