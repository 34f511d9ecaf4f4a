// Package runtimecfg resolves the runtime's process-wide options from the
// environment. spec.md places VINE_MAX_THREADS at compile time; Go has no
// user-facing preprocessor, so this package reads it once, at startup, and
// treats it as fixed for the life of the process — the same intent, the
// Go way of declaring it.
package runtimecfg

import (
	"fmt"
	"os"
	"strconv"
)

// MaxThreadsEnv is the environment variable that bounds the worker pool
// size. Unset or non-positive means unbounded (limited only by
// runtime.NumCPU()).
const MaxThreadsEnv = "VINE_MAX_THREADS"

// MaxThreads reads VINE_MAX_THREADS. It returns 0 (unbounded) when the
// variable is unset, empty, or non-positive, and an error when it is set
// to a value that does not parse as an integer.
func MaxThreads() (int, error) {
	raw := os.Getenv(MaxThreadsEnv)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("runtimecfg: parsing %s=%q: %w", MaxThreadsEnv, raw, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
