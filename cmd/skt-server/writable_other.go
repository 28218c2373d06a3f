//go:build !unix

package main

import "os"

// writableAccess is the non-unix fallback: create-then-remove a probe
// file, since there is no portable access(2) equivalent to reach for.
func writableAccess(dir string) bool {
	probe, err := os.CreateTemp(dir, ".skt-writable-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}
