package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-erp/meridian-erp/testing"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleJournalProjection(t *testing.T) {
	var projected []string
	handlers := NewLedgerHandlers(discardLogger(), testRedis(t),
		func(ctx context.Context, voucherNumber string) error {
			projected = append(projected, voucherNumber)
			return nil
		}, nil, nil)

	task, err := NewJournalProjectionTask(JournalProjectionPayload{VoucherNumber: "J12345"})
	require.NoError(t, err)
	require.NoError(t, handlers.HandleJournalProjection(context.Background(), task))
	require.Equal(t, []string{"J12345"}, projected)
}

func TestHandleJournalProjectionBadPayload(t *testing.T) {
	handlers := NewLedgerHandlers(discardLogger(), testRedis(t),
		func(ctx context.Context, voucherNumber string) error {
			t.Fatal("should not be called")
			return nil
		}, nil, nil)

	err := handlers.HandleJournalProjection(context.Background(), asynq.NewTask(TaskJournalProjection, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewJournalProjectionTask(JournalProjectionPayload{})
	require.NoError(t, err)
	require.ErrorIs(t, handlers.HandleJournalProjection(context.Background(), task), asynq.SkipRetry)
}

func TestHandleMonthlyRollup(t *testing.T) {
	rdb := testRedis(t)
	var aggregated, carried int
	handlers := NewLedgerHandlers(discardLogger(), rdb, nil,
		func(ctx context.Context, fiscalYear, month int) (int64, error) {
			require.Equal(t, 2025, fiscalYear)
			require.Equal(t, 4, month)
			aggregated++
			return 7, nil
		},
		func(ctx context.Context, fiscalYear, month int) (int64, error) {
			carried++
			return 7, nil
		})

	task, err := NewMonthlyRollupTask(MonthlyRollupPayload{FiscalYear: 2025, Month: 4, CarryForward: true})
	require.NoError(t, err)
	require.NoError(t, handlers.HandleMonthlyRollup(context.Background(), task))
	require.Equal(t, 1, aggregated)
	require.Equal(t, 1, carried)

	// lock released, a second run proceeds
	require.NoError(t, handlers.HandleMonthlyRollup(context.Background(), task))
	require.Equal(t, 2, aggregated)
}

func TestHandleMonthlyRollupSkipsWhenLocked(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.SetNX(ctx, RollupLockKey(2025, 4), "1", rollupLockTTL).Err())

	handlers := NewLedgerHandlers(discardLogger(), rdb, nil,
		func(ctx context.Context, fiscalYear, month int) (int64, error) {
			t.Fatal("rollup must not run while locked")
			return 0, nil
		}, nil)

	task, err := NewMonthlyRollupTask(MonthlyRollupPayload{FiscalYear: 2025, Month: 4})
	require.NoError(t, err)
	require.NoError(t, handlers.HandleMonthlyRollup(ctx, task))
}

func TestHandleMonthlyRollupReleasesLockOnError(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	boom := errors.New("aggregation failed")

	handlers := NewLedgerHandlers(discardLogger(), rdb, nil,
		func(ctx context.Context, fiscalYear, month int) (int64, error) {
			return 0, boom
		}, nil)

	task, err := NewMonthlyRollupTask(MonthlyRollupPayload{FiscalYear: 2025, Month: 4})
	require.NoError(t, err)
	require.ErrorIs(t, handlers.HandleMonthlyRollup(ctx, task), boom)

	held, err := rdb.Exists(ctx, RollupLockKey(2025, 4)).Result()
	require.NoError(t, err)
	require.Zero(t, held)
}
