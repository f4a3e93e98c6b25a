//go:build windows

package follower

import "os"

// statIdentity on Windows has no portable inode/device equivalent
// available from os.FileInfo alone; size-only truncation detection
// still works, rotation detection degrades to "file replaced under
// the same name produces a size smaller than pos" which the
// truncation branch already catches in the common case.
func statIdentity(info os.FileInfo) (dev, ino uint64, size int64) {
	return 0, 0, info.Size()
}
