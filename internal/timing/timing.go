package timing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AddAnalysisTime records how long processing an amount of text took. The
// samples feed duration predictions for future runs.
func AddAnalysisTime(
	ctx context.Context,
	conn *pgxpool.Pool,
	documentID string,
	chars int64,
	durationMs int64,
	statType string,
) error {
	_, err := conn.Exec(ctx, `
		INSERT INTO document_stats (document_id, chars, duration_ms, stat_type)
		VALUES ($1, $2, $3, $4)
	`, documentID, chars, durationMs, statType)
	return err
}

// PredictAnalysisTime estimates the duration in milliseconds for processing
// the given amount of text, based on the per-rune rate over the most recent
// samples of the same stat type. Returns 0 when no history exists.
func PredictAnalysisTime(ctx context.Context, conn *pgxpool.Pool, chars int64, statType string) (int64, error) {
	var rate float64
	err := conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_ms)::float8 / NULLIF(SUM(chars), 0), 0)
		FROM (
			SELECT chars, duration_ms
			FROM document_stats
			WHERE stat_type = $1
			ORDER BY created_at DESC
			LIMIT 50
		) recent
	`, statType).Scan(&rate)
	if err != nil {
		return 0, err
	}

	return int64(rate * float64(chars)), nil
}
