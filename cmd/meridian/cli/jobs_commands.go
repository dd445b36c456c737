package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// RollupOptions configures the manual monthly rollup command.
type RollupOptions struct {
	FiscalYear   int
	Month        int
	CarryForward bool
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// RollupResult is the JSON payload printed by RollupCommand.
type RollupResult struct {
	TaskID       string `json:"task_id"`
	FiscalYear   int    `json:"fiscal_year"`
	Month        int    `json:"month"`
	CarryForward bool   `json:"carry_forward"`
}

// RollupCommand enqueues a monthly rollup and prints the task id.
// Returns a process exit code.
func (c *JobsCLI) RollupCommand(ctx context.Context, opts RollupOptions) int {
	if opts.FiscalYear <= 0 || opts.Month < 1 || opts.Month > 12 {
		fmt.Fprintf(opts.Stderr, "invalid period %d-%02d\n", opts.FiscalYear, opts.Month)
		return 1
	}
	taskID, err := c.EnqueueRollup(ctx, opts.FiscalYear, opts.Month, opts.CarryForward)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "enqueue rollup: %v\n", err)
		return 1
	}
	result := RollupResult{
		TaskID:       taskID,
		FiscalYear:   opts.FiscalYear,
		Month:        opts.Month,
		CarryForward: opts.CarryForward,
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			fmt.Fprintf(opts.Stderr, "encode result: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "enqueued rollup %s for %d-%02d (carry_forward=%t)\n",
		result.TaskID, result.FiscalYear, result.Month, result.CarryForward)
	return 0
}

// StatsCommand prints default queue depth.
func (c *JobsCLI) StatsCommand(stdout, stderr io.Writer) int {
	pending, active, err := c.QueueStats()
	if err != nil {
		fmt.Fprintf(stderr, "queue stats: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "pending=%d active=%d\n", pending, active)
	return 0
}
