package testutil

import (
	"os"
	"testing"
)

// RequireTestEnvironment fails the test unless GO_ENV=test.
// It keeps destructive suites away from development and production databases.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: tests must run with GO_ENV=test (current: %q)", env)
	}
}

// RequireTestEnvironmentOrSkip skips instead of failing when GO_ENV is not test
func RequireTestEnvironmentOrSkip(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Skipf("Skipping test: GO_ENV must be 'test' (current: %q)", env)
	}
}

// SetTestEnvironment sets GO_ENV=test for the duration of t
func SetTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "test")
}
