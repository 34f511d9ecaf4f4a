// Package glocal implements goroutine-local identity lookup.
//
// The scheduler's worker pool is a fixed set of long-lived goroutines, and
// user functions need to recover "which worker am I" from inside a call
// stack that carries no arguments (functions are parameterless). Go has no
// built-in thread-local storage, so this package derives a stable key for
// the calling goroutine from its stack trace header and lets callers
// associate arbitrary values with it. No dependency in the retrieved
// example pack offers goroutine-local storage, so this stays on the
// standard library by necessity, not by choice — see DESIGN.md.
package glocal

import (
	"runtime"
	"strconv"
)

// ID returns an identifier for the calling goroutine. It is stable for the
// lifetime of the goroutine and is not reused until the goroutine exits and
// the runtime recycles the slot, which is good enough to key a lookup table
// for a fixed worker pool.
func ID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack traces start with "goroutine <id> [state]:".
	line := buf[:n]
	const prefix = "goroutine "
	i := len(prefix)
	j := i
	for j < len(line) && line[j] != ' ' {
		j++
	}
	id, _ := strconv.ParseUint(string(line[i:j]), 10, 64)
	return id
}
