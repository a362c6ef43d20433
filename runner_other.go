//go:build !linux

package main

import "os"

const memoryLimitSupported = false

func limitMemory(pid int, limit uint64) error {
	return nil
}

func resourceExhausted(state *os.ProcessState, stderr []byte) bool {
	return false
}
