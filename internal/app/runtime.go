package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testModeOnce sync.Once
	testMode     atomic.Bool
)

// InTestMode reports whether the process was started with MERIDIAN_TEST_MODE=1.
// Test mode relaxes external dependencies such as Redis-backed job queues.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode.Store(os.Getenv(testModeEnv) == "1")
	})
	return testMode.Load()
}

// RefreshTestMode re-reads the environment. Intended for tests only.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
