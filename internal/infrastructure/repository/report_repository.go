package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a store keeping one report per account
func NewReportRepository(pool *pgxpool.Pool) reporting.Store {
	return &reportRepository{pool: pool}
}

// Save upserts the account's report; a newer run replaces the older one
func (r *reportRepository) Save(ctx context.Context, doc *reporting.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewInternalError("encode report").WithCause(err)
	}

	const query = `
		INSERT INTO analysis_reports (account_id, run_id, report, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id) DO UPDATE
		SET run_id = EXCLUDED.run_id,
			report = EXCLUDED.report,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query, doc.AccountID, doc.RunID, body)
	return wrapError(err, "report", "save")
}

func (r *reportRepository) Get(ctx context.Context, accountID uuid.UUID) (*reporting.Document, error) {
	const query = `SELECT report FROM analysis_reports WHERE account_id = $1`

	var body []byte
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&body); err != nil {
		return nil, wrapError(err, "report", "get")
	}

	var doc reporting.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.NewInternalError("decode report").WithCause(err)
	}
	return &doc, nil
}
