package core

import (
	"bytes"
	"encoding/binary"

	"github.com/sffs-go/sffs"
)

// InodeHeaderSize is the fixed, packed size in bytes of an inode record's
// header, field order as spec.md §3/§6: N, next, list size, last-entry,
// uid, gid, flags, block count, residual bytes, mode, nlinks, four
// timestamps, then padding to round out the slot.
const InodeHeaderSize = 64

// PointerSize is the width, in bytes, of one data-block pointer slot.
const PointerSize = 4

// PrimaryPointerCount (P) is the number of direct block pointers stored
// immediately after a primary inode's header.
const PrimaryPointerCount = 12

// InodeDataSize is the size, in bytes, of the pointer area following every
// inode record (primary or supplementary): P * PointerSize.
const InodeDataSize = PrimaryPointerCount * PointerSize

// InodeEntrySize is the total size of one GIT slot: header plus pointer
// area.
const InodeEntrySize = InodeHeaderSize + InodeDataSize

// SupplementaryPointerCount (Q) is the number of pointers a supplementary
// record carries. Supplementary records reuse the header bytes past the
// first 8 (inode number + next pointer) as additional pointer slots, so
// Q = P + (InodeHeaderSize-8)/PointerSize.
const SupplementaryPointerCount = PrimaryPointerCount + (InodeHeaderSize-8)/PointerSize

// rawInodeHeader is the wire layout of an inode record's header. All
// fields are fixed-width and written with binary.LittleEndian, so there is
// no implicit padding beyond the trailing reserved array.
type rawInodeHeader struct {
	InodeNumber   uint32
	NextEntry     uint32
	ListSize      uint32
	LastLentry    uint32
	Uid           uint32
	Gid           uint32
	Flags         uint32
	BlockCount    uint32
	ResidualBytes uint16
	Mode          uint32
	Nlinks        uint16
	AccessTime    uint32
	ChangeTime    uint32
	ModTime       uint32
	CreateTime    uint32
	_             [8]byte
}

// Inode is the in-memory representation of a file's primary inode record
// plus its direct pointer area.
type Inode struct {
	InodeNumber   uint32
	NextEntry     uint32
	ListSize      uint32
	LastLentry    uint32
	Uid           uint32
	Gid           uint32
	Flags         uint32
	BlockCount    uint32
	Mode          uint32
	ResidualBytes uint16
	Nlinks        uint16
	AccessTime    uint32
	ChangeTime    uint32
	ModTime       uint32
	CreateTime    uint32
	Pointers      [PrimaryPointerCount]uint32
}

// IsDir reports whether the inode's mode nibble is a directory.
func (n *Inode) IsDir() bool {
	return n.Mode&sffs.S_IFMT == sffs.S_IFDIR
}

func (n *Inode) toRaw() rawInodeHeader {
	return rawInodeHeader{
		InodeNumber:   n.InodeNumber,
		NextEntry:     n.NextEntry,
		ListSize:      n.ListSize,
		LastLentry:    n.LastLentry,
		Uid:           n.Uid,
		Gid:           n.Gid,
		Flags:         n.Flags,
		BlockCount:    n.BlockCount,
		Mode:          n.Mode,
		ResidualBytes: n.ResidualBytes,
		Nlinks:        n.Nlinks,
		AccessTime:    n.AccessTime,
		ChangeTime:    n.ChangeTime,
		ModTime:       n.ModTime,
		CreateTime:    n.CreateTime,
	}
}

// Marshal encodes the inode as an InodeEntrySize-byte GIT slot.
func (n *Inode) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(InodeEntrySize)
	raw := n.toRaw()
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return nil, sffs.New(sffs.MemAlloc).Wrap(err)
	}
	if err := binary.Write(buf, binary.LittleEndian, &n.Pointers); err != nil {
		return nil, sffs.New(sffs.MemAlloc).Wrap(err)
	}
	return buf.Bytes(), nil
}

// UnmarshalInode decodes an InodeEntrySize-byte GIT slot as a primary
// inode record.
func UnmarshalInode(data []byte) (*Inode, error) {
	if len(data) != InodeEntrySize {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"inode slot must be %d bytes, got %d", InodeEntrySize, len(data))
	}
	r := bytes.NewReader(data)
	var raw rawInodeHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, sffs.New(sffs.Fs).Wrap(err)
	}
	var pointers [PrimaryPointerCount]uint32
	if err := binary.Read(r, binary.LittleEndian, &pointers); err != nil {
		return nil, sffs.New(sffs.Fs).Wrap(err)
	}
	return &Inode{
		InodeNumber:   raw.InodeNumber,
		NextEntry:     raw.NextEntry,
		ListSize:      raw.ListSize,
		LastLentry:    raw.LastLentry,
		Uid:           raw.Uid,
		Gid:           raw.Gid,
		Flags:         raw.Flags,
		BlockCount:    raw.BlockCount,
		Mode:          raw.Mode,
		ResidualBytes: raw.ResidualBytes,
		Nlinks:        raw.Nlinks,
		AccessTime:    raw.AccessTime,
		ChangeTime:    raw.ChangeTime,
		ModTime:       raw.ModTime,
		CreateTime:    raw.CreateTime,
		Pointers:      pointers,
	}, nil
}

// Supplementary is an inode-list node that carries only an identity, a
// forward pointer, and a pointer array — no file metadata. It occupies a
// full InodeEntrySize slot like a primary record, reusing the header's
// unused field bytes as extra pointer slots (spec.md §3 "Q is slightly
// larger").
type Supplementary struct {
	InodeNumber uint32
	NextEntry   uint32
	Pointers    [SupplementaryPointerCount]uint32
}

// Marshal encodes the supplementary record as an InodeEntrySize-byte GIT
// slot: inode number, next pointer, then every remaining byte of the slot
// used as pointer storage.
func (s *Supplementary) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(InodeEntrySize)
	if err := binary.Write(buf, binary.LittleEndian, s.InodeNumber); err != nil {
		return nil, sffs.New(sffs.MemAlloc).Wrap(err)
	}
	if err := binary.Write(buf, binary.LittleEndian, s.NextEntry); err != nil {
		return nil, sffs.New(sffs.MemAlloc).Wrap(err)
	}
	if err := binary.Write(buf, binary.LittleEndian, &s.Pointers); err != nil {
		return nil, sffs.New(sffs.MemAlloc).Wrap(err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSupplementary decodes an InodeEntrySize-byte GIT slot as a
// supplementary inode-list record.
func UnmarshalSupplementary(data []byte) (*Supplementary, error) {
	if len(data) != InodeEntrySize {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"inode slot must be %d bytes, got %d", InodeEntrySize, len(data))
	}
	r := bytes.NewReader(data)
	s := &Supplementary{}
	if err := binary.Read(r, binary.LittleEndian, &s.InodeNumber); err != nil {
		return nil, sffs.New(sffs.Fs).Wrap(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.NextEntry); err != nil {
		return nil, sffs.New(sffs.Fs).Wrap(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.Pointers); err != nil {
		return nil, sffs.New(sffs.Fs).Wrap(err)
	}
	return s, nil
}
