//go:build linux || darwin

package conn

import (
	"os"

	"golang.org/x/sys/unix"
)

// socketExists reports whether path exists and is a unix domain socket.
func socketExists(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if err == unix.ENOENT {
			return false, nil
		}
		return false, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return st.Mode&unix.S_IFMT == unix.S_IFSOCK, nil
}
