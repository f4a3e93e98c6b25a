//go:build !windows

package follower

import (
	"os"
	"syscall"
)

// statIdentity extracts the device, inode and size the spec's
// identity check needs from an os.FileInfo.
func statIdentity(info os.FileInfo) (dev, ino uint64, size int64) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Dev), uint64(st.Ino), info.Size()
	}
	return 0, 0, info.Size()
}
