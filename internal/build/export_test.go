package build

import (
	"testing"
	"time"
)

// StubRename replaces the rename used for the backup swap for the
// duration of one test.
func StubRename(t *testing.T, f func(from, to string) error) {
	t.Helper()
	orig := rename
	rename = f
	t.Cleanup(func() { rename = orig })
}

// StubRetryDelay shortens the transient-permission retry delay for the
// duration of one test.
func StubRetryDelay(t *testing.T, d time.Duration) {
	t.Helper()
	orig := retryDelay
	retryDelay = d
	t.Cleanup(func() { retryDelay = orig })
}
