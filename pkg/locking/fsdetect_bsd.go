//go:build darwin || freebsd

package locking

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

func classifyPath(path string) (FilesystemInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FilesystemInfo{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	return classifyByName(fsTypeName(st.Fstypename[:])), nil
}

func fsTypeName(raw []int8) string {
	var b strings.Builder
	for _, c := range raw {
		if c == 0 {
			break
		}
		b.WriteByte(byte(c))
	}
	return strings.ToLower(b.String())
}
