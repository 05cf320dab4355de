package sffs

import "time"

// Attr is the platform-independent result of GetAttr, analogous to the
// teacher's disko.FileStat (syscall.Stat_t, but in Go types).
type Attr struct {
	InodeNumber  uint32
	Mode         uint32
	Nlinks       uint16
	Uid          uint32
	Gid          uint32
	Size         int64
	BlockSize    int64
	NumBlocks    int64
	AccessedAt   time.Time
	ChangedAt    time.Time
	ModifiedAt   time.Time
	CreatedAt    time.Time
}

// IsDir reports whether this attribute describes a directory.
func (a Attr) IsDir() bool {
	return a.Mode&S_IFMT == S_IFDIR
}

// IsFile reports whether this attribute describes a regular file.
func (a Attr) IsFile() bool {
	return a.Mode&S_IFMT == S_IFREG
}

// DirEntry is one entry returned from ReadDir: a name plus the file-type
// nibble stored alongside it in the directory record (spec.md §6), so a
// caller can tell file from directory without a second lookup.
type DirEntry struct {
	Name       string
	InodeNumber uint32
	FileType   uint8
}

// FSStat is the platform-independent result of StatFS, analogous to the
// teacher's disko.FSStat (syscall.Statfs_t, but in Go types).
type FSStat struct {
	BlockSize       int64
	TotalBlocks     uint64
	FreeBlocks      uint64
	TotalInodes     uint64
	FreeInodes      uint64
	TotalGroups     uint32
	FreeGroups      uint32
	MaxNameLength   int64
	Label           string
}
