package logger

import "os"

// isTerminal reports whether f is attached to an interactive terminal.
//
// This codebase's reference equivalent does this per-OS via raw ioctl
// syscalls, with a !windows file and a linux file that both declare
// isTerminal — a build-tag overlap that breaks on linux. Using the file's
// mode bit avoids that duplication and needs no per-OS build tags.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
