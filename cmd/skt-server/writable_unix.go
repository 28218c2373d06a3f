//go:build unix

package main

import "golang.org/x/sys/unix"

// writableAccess probes write access the cheap way on unix platforms: a
// direct W_OK access(2) check instead of creating and removing a probe
// file. Mirrors the access(3) tradition the original C implementation's
// own platform assumptions (getifaddrs, uv_fs_*) lean on throughout
// _examples/original_source/skt-server.c.
func writableAccess(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
