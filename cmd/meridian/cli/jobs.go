package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// EnqueueRollup submits a monthly rollup task for the given period.
func (c *JobsCLI) EnqueueRollup(ctx context.Context, fiscalYear, month int, carryForward bool) (string, error) {
	if c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("jobs cli: month %d out of range", month)
	}
	task, err := jobs.NewMonthlyRollupTask(jobs.MonthlyRollupPayload{
		FiscalYear:   fiscalYear,
		Month:        month,
		CarryForward: carryForward,
	})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// EnqueueProjection submits a journal projection task for one voucher.
func (c *JobsCLI) EnqueueProjection(ctx context.Context, voucherNumber string) (string, error) {
	if c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	if voucherNumber == "" {
		return "", errors.New("jobs cli: voucher number required")
	}
	task, err := jobs.NewJournalProjectionTask(jobs.JournalProjectionPayload{VoucherNumber: voucherNumber})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// QueueStats reports pending and active counts for the default queue.
func (c *JobsCLI) QueueStats() (pending, active int, err error) {
	if c.inspector == nil {
		return 0, 0, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return 0, 0, err
	}
	return info.Pending, info.Active, nil
}
