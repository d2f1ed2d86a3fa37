package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pawnbook/pawnbook/internal/jobs"
	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/ledger/reports"
)

// LedgerIntegrityJob rebuilds every company's trial balance and flags any
// company whose debits and credits no longer agree. The posting path keeps
// vouchers balanced by construction, so a hit here means out-of-band writes
// or corruption and warrants human attention, never automatic repair.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Ledger  *ledger.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, repo *ledger.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Ledger:  repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	companies, unbalanced, err := j.scan(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, companyID := range unbalanced {
		logger.Warn("trial balance out of balance",
			slog.Int64("company_id", companyID),
		)
		j.metrics().AddImbalance(companyID)
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("companies", companies),
		slog.Int("unbalanced", len(unbalanced)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LedgerIntegrityJob) scan(ctx context.Context) (int, []int64, error) {
	if j.Pool == nil || j.Ledger == nil {
		return 0, nil, errors.New("ledger integrity: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var companyIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, nil, err
		}
		companyIDs = append(companyIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	var unbalanced []int64
	for _, companyID := range companyIDs {
		totals, err := j.Ledger.AccountTotals(ctx, companyID, nil, nil)
		if err != nil {
			return 0, nil, err
		}
		tb := reports.BuildTrialBalance(totals)
		if !tb.Balanced {
			unbalanced = append(unbalanced, companyID)
		}
	}
	return len(companyIDs), unbalanced, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
