//go:build linux
// +build linux

package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

func preallocate(f *os.File, size int64) error {
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err == nil {
		return nil
	}
	// tmpfs and some network filesystems lack fallocate
	return f.Truncate(size)
}

func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
