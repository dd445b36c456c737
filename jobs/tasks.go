package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskJournalProjection folds a posted journal into the daily balances.
	TaskJournalProjection = "ledger:project_journal"
	// TaskMonthlyRollup aggregates a month's daily balances into monthly rows.
	TaskMonthlyRollup = "ledger:monthly_rollup"
)

// JournalProjectionPayload names the journal to project.
type JournalProjectionPayload struct {
	VoucherNumber string `json:"voucher_number"`
}

// MonthlyRollupPayload names the period to roll up. CarryForward additionally
// seeds the next month's opening balances.
type MonthlyRollupPayload struct {
	FiscalYear   int  `json:"fiscal_year"`
	Month        int  `json:"month"`
	CarryForward bool `json:"carry_forward"`
}

// NewJournalProjectionTask constructs an Asynq task.
func NewJournalProjectionTask(payload JournalProjectionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalProjection, data), nil
}

// NewMonthlyRollupTask constructs an Asynq task.
func NewMonthlyRollupTask(payload MonthlyRollupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMonthlyRollup, data), nil
}
