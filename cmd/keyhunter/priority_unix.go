//go:build unix

package main

import "golang.org/x/sys/unix"

// raisePriority lowers the niceness of the process. Values below zero need
// elevated privileges.
func raisePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -10)
}
