//go:build linux

package main

import (
	"bytes"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const memoryLimitSupported = true

// limitMemory caps the address space of a running process. The child runs
// unrestricted between its start and this call.
func limitMemory(pid int, limit uint64) error {
	rl := &unix.Rlimit{Cur: limit, Max: limit}
	return unix.Prlimit(pid, unix.RLIMIT_AS, rl, nil)
}

// resourceExhausted guesses whether a failed child ran into its address-space
// ceiling: allocation failures surface as a crash signal or an out-of-memory
// message.
func resourceExhausted(state *os.ProcessState, stderr []byte) bool {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		switch ws.Signal() {
		case syscall.SIGSEGV, syscall.SIGABRT, syscall.SIGBUS, syscall.SIGKILL:
			return true
		}
	}
	lower := bytes.ToLower(stderr)
	return bytes.Contains(lower, []byte("out of memory")) ||
		bytes.Contains(lower, []byte("cannot allocate memory")) ||
		bytes.Contains(lower, []byte("bad_alloc"))
}
