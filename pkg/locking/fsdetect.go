package locking

// AdvisorySupport says whether advisory locks are trustworthy on a filesystem.
type AdvisorySupport int

const (
	// SupportUnknown is treated like native support.
	SupportUnknown AdvisorySupport = iota
	SupportNative
	SupportRequiresFallback
)

// FilesystemInfo describes the filesystem that holds a lock file.
type FilesystemInfo struct {
	// Name is a short filesystem type name such as "ext4" or "nfs".
	Name    string
	Network bool
	Support AdvisorySupport
}

// FilesystemInspector classifies the filesystem containing path.
//
//go:generate go run go.uber.org/mock/mockgen@latest -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE
type FilesystemInspector interface {
	Classify(path string) (FilesystemInfo, error)
}

// NewFilesystemInspector returns the inspector for the running platform.
func NewFilesystemInspector() FilesystemInspector {
	return statfsInspector{}
}

type statfsInspector struct{}

func (statfsInspector) Classify(path string) (FilesystemInfo, error) {
	return classifyPath(path)
}

// routeBackend maps filesystem info to a backend. Unknown filesystems use advisory locks.
func routeBackend(info FilesystemInfo) Backend {
	if info.Support == SupportRequiresFallback {
		return BackendFallback
	}
	return BackendAdvisory
}

// classifyByName handles platforms that report a filesystem type name.
func classifyByName(name string) FilesystemInfo {
	switch name {
	case "apfs", "hfs", "ufs", "zfs", "ext4", "xfs", "btrfs", "ntfs", "refs":
		return FilesystemInfo{Name: name, Support: SupportNative}
	case "nfs", "nfs4", "smbfs", "cifs", "afpfs", "webdav":
		return FilesystemInfo{Name: name, Network: true, Support: SupportRequiresFallback}
	case "msdos", "exfat", "fat32", "fat", "vfat":
		return FilesystemInfo{Name: name, Support: SupportRequiresFallback}
	default:
		return FilesystemInfo{Name: name, Support: SupportUnknown}
	}
}
