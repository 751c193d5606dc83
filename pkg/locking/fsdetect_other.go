//go:build !linux && !darwin && !freebsd

package locking

// classifyPath has no probe on this platform; advisory locks are used.
func classifyPath(string) (FilesystemInfo, error) {
	return FilesystemInfo{Name: "unknown", Support: SupportUnknown}, nil
}
