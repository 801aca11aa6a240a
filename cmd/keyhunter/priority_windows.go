//go:build windows

package main

import "syscall"

const highPriorityClass = 0x00000080

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	procGetCurrentProcess = kernel32.NewProc("GetCurrentProcess")
	procSetPriorityClass  = kernel32.NewProc("SetPriorityClass")
)

// raisePriority moves the process to HIGH_PRIORITY_CLASS. REALTIME can
// starve the display driver feeding the GPUs.
func raisePriority() error {
	handle, _, _ := procGetCurrentProcess.Call()
	if ret, _, err := procSetPriorityClass.Call(handle, highPriorityClass); ret == 0 {
		return err
	}
	return nil
}
