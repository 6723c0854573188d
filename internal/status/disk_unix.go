//go:build linux || darwin

package status

import "syscall"

func diskUsage(dir string) (used, total uint64) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, 0
	}
	bsize := uint64(st.Bsize)
	total = st.Blocks * bsize
	used = total - st.Bfree*bsize
	return used, total
}
