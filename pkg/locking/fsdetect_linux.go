//go:build linux

package locking

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Filesystem magic numbers from statfs(2).
const (
	magicExt4    uint32 = 0xEF53
	magicXFS     uint32 = 0x58465342
	magicBtrfs   uint32 = 0x9123683E
	magicZFS     uint32 = 0x2FC12FC1
	magicTmpfs   uint32 = 0x01021994
	magicOverlay uint32 = 0x794C7630
	magicNFS     uint32 = 0x6969
	magicCIFS    uint32 = 0xFF534D42
	magicSMB2    uint32 = 0xFE534D42
	magicSMB     uint32 = 0x517B
	magicMSDOS   uint32 = 0x4D44
	magicExFAT   uint32 = 0x2011BAB0
)

func classifyPath(path string) (FilesystemInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FilesystemInfo{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	return classifyMagic(uint32(st.Type)), nil //nolint:gosec // magic numbers fit in 32 bits.
}

func classifyMagic(magic uint32) FilesystemInfo {
	switch magic {
	case magicExt4:
		return FilesystemInfo{Name: "ext4", Support: SupportNative}
	case magicXFS:
		return FilesystemInfo{Name: "xfs", Support: SupportNative}
	case magicBtrfs:
		return FilesystemInfo{Name: "btrfs", Support: SupportNative}
	case magicZFS:
		return FilesystemInfo{Name: "zfs", Support: SupportNative}
	case magicTmpfs:
		return FilesystemInfo{Name: "tmpfs", Support: SupportUnknown}
	case magicOverlay:
		return FilesystemInfo{Name: "overlay", Support: SupportUnknown}
	case magicNFS:
		return FilesystemInfo{Name: "nfs", Network: true, Support: SupportRequiresFallback}
	case magicCIFS:
		return FilesystemInfo{Name: "cifs", Network: true, Support: SupportRequiresFallback}
	case magicSMB2:
		return FilesystemInfo{Name: "smb2", Network: true, Support: SupportRequiresFallback}
	case magicSMB:
		return FilesystemInfo{Name: "smb", Network: true, Support: SupportRequiresFallback}
	case magicMSDOS:
		return FilesystemInfo{Name: "msdos", Support: SupportRequiresFallback}
	case magicExFAT:
		return FilesystemInfo{Name: "exfat", Support: SupportRequiresFallback}
	default:
		return FilesystemInfo{Name: fmt.Sprintf("0x%X", magic), Support: SupportUnknown}
	}
}
