package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-erp/meridian-erp/testing"
)

func testCLI(t *testing.T) *JobsCLI {
	t.Helper()
	srv := miniredis.RunT(t)
	cli, err := NewJobsCLI(srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func TestRollupCommandEnqueues(t *testing.T) {
	cli := testCLI(t)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.RollupCommand(context.Background(), RollupOptions{
		FiscalYear:   2024,
		Month:        4,
		CarryForward: true,
		JSONOutput:   true,
		Stdout:       stdout,
		Stderr:       stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var result RollupResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.NotEmpty(t, result.TaskID)
	require.Equal(t, 2024, result.FiscalYear)
	require.Equal(t, 4, result.Month)
	require.True(t, result.CarryForward)

	pending, _, err := cli.QueueStats()
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func TestRollupCommandInvalidPeriod(t *testing.T) {
	cli := testCLI(t)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.RollupCommand(context.Background(), RollupOptions{
		FiscalYear: 2024,
		Month:      13,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "invalid period")
	require.Empty(t, stdout.String())
}

func TestEnqueueProjectionRequiresVoucher(t *testing.T) {
	cli := testCLI(t)

	_, err := cli.EnqueueProjection(context.Background(), "")
	require.Error(t, err)

	taskID, err := cli.EnqueueProjection(context.Background(), "J12345678")
	require.NoError(t, err)
	require.NotEmpty(t, taskID)
}
