package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// ProjectJournalFunc folds one posted journal into the daily balances.
type ProjectJournalFunc func(ctx context.Context, voucherNumber string) error

// RollupFunc runs a period-level balance operation and reports affected rows.
type RollupFunc func(ctx context.Context, fiscalYear, month int) (int64, error)

// rollupLockTTL bounds how long a crashed worker can hold a period lock.
const rollupLockTTL = 5 * time.Minute

// LedgerHandlers processes ledger background tasks. The monthly rollup is
// serialised per period through a Redis lock so overlapping schedules cannot
// double-aggregate.
type LedgerHandlers struct {
	logger         *slog.Logger
	redis          *redis.Client
	metrics        *Metrics
	projectJournal ProjectJournalFunc
	aggregate      RollupFunc
	carryForward   RollupFunc
}

func NewLedgerHandlers(logger *slog.Logger, redisClient *redis.Client, project ProjectJournalFunc, aggregate, carryForward RollupFunc) *LedgerHandlers {
	return &LedgerHandlers{
		logger:         logger,
		redis:          redisClient,
		projectJournal: project,
		aggregate:      aggregate,
		carryForward:   carryForward,
	}
}

// WithMetrics attaches task instrumentation.
func (h *LedgerHandlers) WithMetrics(m *Metrics) *LedgerHandlers {
	h.metrics = m
	return h
}

// Handlers returns the task registrations for worker setup.
func (h *LedgerHandlers) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskJournalProjection, Handler: h.HandleJournalProjection},
		{Type: TaskMonthlyRollup, Handler: h.HandleMonthlyRollup},
	}
}

// HandleJournalProjection processes TaskJournalProjection tasks.
func (h *LedgerHandlers) HandleJournalProjection(ctx context.Context, t *asynq.Task) error {
	var payload JournalProjectionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.VoucherNumber == "" {
		return asynq.SkipRetry
	}

	tracker := h.metrics.Track(TaskJournalProjection)
	if err := tracker.End(h.projectJournal(ctx, payload.VoucherNumber)); err != nil {
		h.logger.Error("journal projection failed",
			slog.String("voucher_number", payload.VoucherNumber), slog.Any("error", err))
		return err
	}
	h.logger.Info("journal projected", slog.String("voucher_number", payload.VoucherNumber))
	return nil
}

// HandleMonthlyRollup processes TaskMonthlyRollup tasks.
func (h *LedgerHandlers) HandleMonthlyRollup(ctx context.Context, t *asynq.Task) error {
	var payload MonthlyRollupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	lockKey := RollupLockKey(payload.FiscalYear, payload.Month)
	acquired, err := h.acquireLock(ctx, lockKey)
	if err != nil {
		return err
	}
	if !acquired {
		h.logger.Warn("monthly rollup already running",
			slog.Int("fiscal_year", payload.FiscalYear), slog.Int("month", payload.Month))
		return nil
	}
	defer h.releaseLock(ctx, lockKey)

	tracker := h.metrics.Track(TaskMonthlyRollup)
	affected, err := h.aggregate(ctx, payload.FiscalYear, payload.Month)
	if err != nil {
		_ = tracker.End(err)
		h.logger.Error("monthly rollup failed",
			slog.Int("fiscal_year", payload.FiscalYear), slog.Int("month", payload.Month), slog.Any("error", err))
		return err
	}
	h.metrics.AddRows("aggregate", affected)
	h.logger.Info("monthly rollup complete",
		slog.Int("fiscal_year", payload.FiscalYear), slog.Int("month", payload.Month),
		slog.Int64("rows", affected))

	if !payload.CarryForward {
		return tracker.End(nil)
	}
	carried, err := h.carryForward(ctx, payload.FiscalYear, payload.Month)
	if err != nil {
		_ = tracker.End(err)
		h.logger.Error("carry forward failed",
			slog.Int("fiscal_year", payload.FiscalYear), slog.Int("month", payload.Month), slog.Any("error", err))
		return err
	}
	h.metrics.AddRows("carry_forward", carried)
	h.logger.Info("carry forward complete",
		slog.Int("fiscal_year", payload.FiscalYear), slog.Int("month", payload.Month),
		slog.Int64("rows", carried))
	return tracker.End(nil)
}

// RollupLockKey builds the redis key guarding one period's rollup.
func RollupLockKey(fiscalYear, month int) string {
	return fmt.Sprintf("ledger:rollup:%d:%02d:lock", fiscalYear, month)
}

func (h *LedgerHandlers) acquireLock(ctx context.Context, key string) (bool, error) {
	if h.redis == nil {
		return true, nil
	}
	return h.redis.SetNX(ctx, key, "1", rollupLockTTL).Result()
}

func (h *LedgerHandlers) releaseLock(ctx context.Context, key string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, key).Err(); err != nil {
		h.logger.Warn("release rollup lock", slog.String("key", key), slog.Any("error", err))
	}
}
