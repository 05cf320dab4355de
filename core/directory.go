package core

import (
	"bytes"
	"encoding/binary"

	"github.com/sffs-go/sffs"
)

// dirRecordHeaderSize mirrors sffs.DirRecordHeaderSize; kept local so this
// file reads self-contained against the wire layout it implements.
const dirRecordHeaderSize = sffs.DirRecordHeaderSize

// DirRecord is one directory entry: a name, the inode it names, and the
// IFMT-equivalent type nibble stored alongside it (spec.md §3, §6, §4.8).
type DirRecord struct {
	InoID    uint32
	RecLen   uint16
	FileType uint16
	Name     string
}

// IsSentinel reports whether r is the tail sentinel of its block.
func (r *DirRecord) IsSentinel() bool {
	return r.InoID == 0
}

// BuildRecord constructs a directory record for name, rejecting names
// that don't fit in one MaxDirEntry-sized slot.
func BuildRecord(ino uint32, name string, fileType uint8) (*DirRecord, error) {
	if len(name) > sffs.MaxNameLength {
		return nil, sffs.New(sffs.InvArg).WithMessage(
			"name %q is %d bytes, longer than the %d-byte limit", name, len(name), sffs.MaxNameLength)
	}
	return &DirRecord{
		InoID:    ino,
		RecLen:   uint16(dirRecordHeaderSize + len(name)),
		FileType: uint16(fileType),
		Name:     name,
	}, nil
}

func buildSentinel(recLen uint16) *DirRecord {
	return &DirRecord{InoID: 0, RecLen: recLen, FileType: 0}
}

// marshalRecord encodes r to its packed wire form.
func marshalRecord(r *DirRecord) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.InoID)
	binary.Write(buf, binary.LittleEndian, r.RecLen)
	binary.Write(buf, binary.LittleEndian, r.FileType)
	buf.WriteString(r.Name)
	return buf.Bytes()
}

// unmarshalRecordAt decodes the record starting at offset within block.
func unmarshalRecordAt(block []byte, offset int) (*DirRecord, error) {
	if offset+dirRecordHeaderSize > len(block) {
		return nil, sffs.New(sffs.Fs).WithMessage(
			"directory record header at offset %d overruns the block", offset)
	}
	r := bytes.NewReader(block[offset : offset+dirRecordHeaderSize])
	rec := &DirRecord{}
	binary.Read(r, binary.LittleEndian, &rec.InoID)
	binary.Read(r, binary.LittleEndian, &rec.RecLen)
	binary.Read(r, binary.LittleEndian, &rec.FileType)

	if int(rec.RecLen) < dirRecordHeaderSize {
		return nil, sffs.New(sffs.Fs).WithMessage(
			"record at offset %d has rec_len %d, smaller than the header", offset, rec.RecLen)
	}
	nameEnd := offset + int(rec.RecLen)
	if nameEnd > len(block) {
		return nil, sffs.New(sffs.Fs).WithMessage(
			"record at offset %d has rec_len %d, overrunning the block", offset, rec.RecLen)
	}
	if !rec.IsSentinel() {
		rec.Name = string(block[offset+dirRecordHeaderSize : nameEnd])
	}
	return rec, nil
}

// RecordLocation pins down where a directory record physically lives.
type RecordLocation struct {
	DataBlockID uint32 // data-relative block number
	Offset      int    // byte offset within the block
	ParentInode uint32
}

// InitChildDirectory allocates one data block for a new directory inode
// and formats it with "." and ".." plus a trailing sentinel (spec.md
// §4.8). parentIno should be childIno for the root directory, whose ".."
// points to itself.
func (ctx *Context) InitChildDirectory(child *Inode, parentIno uint32) error {
	blockSize := int(ctx.Superblock.BlockSize)

	dot, err := BuildRecord(child.InodeNumber, ".", sffs.FileTypeNibble(child.Mode))
	if err != nil {
		return err
	}
	dotdot, err := BuildRecord(parentIno, "..", sffs.FileTypeNibble(child.Mode))
	if err != nil {
		return err
	}
	used := int(dot.RecLen) + int(dotdot.RecLen)
	sentinel := buildSentinel(uint16(blockSize - used))

	block := make([]byte, blockSize)
	offset := 0
	for _, rec := range []*DirRecord{dot, dotdot, sentinel} {
		copy(block[offset:], marshalRecord(rec))
		offset += int(rec.RecLen)
	}

	chosen, err := ctx.AllocateBlocks(child, 1)
	if err != nil {
		return err
	}
	return ctx.Device.WriteData(uint64(chosen[0]), block)
}

// forEachDirBlock calls fn with the contents of every data block
// belonging to dir, in logical order. It stops early, returning nil, when
// fn reports stop=true, and stops returning the error when fn returns a
// non-nil error. Pointer slots holding 0 (unset) are skipped.
func (ctx *Context) forEachDirBlock(dir *Inode, fn func(dataBlockID uint32, block []byte) (bool, error)) error {
	for n := uint64(0); n < uint64(dir.BlockCount); n++ {
		res, err := ctx.ResolveBlock(dir, n, ResolveRead)
		if err != nil {
			return err
		}
		if res.BlockID == 0 {
			continue
		}
		stop, err := fn(res.BlockID, res.Contents)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Lookup searches dir's data blocks for name, returning its record and
// physical location. Absence is reported as sffs.NoEnt, not as an
// operational failure.
func (ctx *Context) Lookup(dir *Inode, name string) (*DirRecord, *RecordLocation, error) {
	var found *DirRecord
	var loc *RecordLocation

	err := ctx.forEachDirBlock(dir, func(dataBlockID uint32, block []byte) (bool, error) {
		offset := 0
		for offset < len(block) {
			rec, err := unmarshalRecordAt(block, offset)
			if err != nil {
				return false, err
			}
			if !rec.IsSentinel() && rec.Name == name {
				found = rec
				loc = &RecordLocation{DataBlockID: dataBlockID, Offset: offset, ParentInode: dir.InodeNumber}
				return true, nil
			}
			offset += int(rec.RecLen)
		}
		return false, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if found == nil {
		return nil, nil, sffs.New(sffs.NoEnt).WithMessage("no directory entry named %q", name)
	}
	return found, loc, nil
}

// Insert adds a new {name -> ino} directory record to dir, reusing the
// first sufficiently large gap it finds, or extending dir with a fresh
// block if none exists (spec.md §4.8). Duplicate names fail with
// sffs.EntExists and leave dir unchanged.
func (ctx *Context) Insert(dir *Inode, name string, ino uint32, fileType uint8) error {
	if _, _, err := ctx.Lookup(dir, name); err == nil {
		return sffs.New(sffs.EntExists).WithMessage("entry %q already exists", name)
	} else if !sffs.New(sffs.NoEnt).Is(err) {
		return err
	}

	newRec, err := BuildRecord(ino, name, fileType)
	if err != nil {
		return err
	}

	inserted := false
	err = ctx.forEachDirBlock(dir, func(dataBlockID uint32, block []byte) (bool, error) {
		offset := 0
		for offset < len(block) {
			rec, err := unmarshalRecordAt(block, offset)
			if err != nil {
				return false, err
			}
			if rec.IsSentinel() && gapFits(rec.RecLen, newRec.RecLen) {
				writeRecordAndTrailingSentinel(block, offset, newRec, rec.RecLen)
				if err := ctx.Device.WriteData(uint64(dataBlockID), block); err != nil {
					return false, err
				}
				inserted = true
				return true, nil
			}
			offset += int(rec.RecLen)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	// No gap large enough anywhere: extend with a fresh block, formatted
	// as one empty sentinel, then insert into it.
	blockSize := ctx.Superblock.BlockSize
	chosen, err := ctx.AllocateBlocks(dir, 1)
	if err != nil {
		return err
	}
	block := make([]byte, blockSize)
	writeRecordAndTrailingSentinel(block, 0, newRec, uint16(blockSize))
	return ctx.Device.WriteData(uint64(chosen[0]), block)
}

// gapFits reports whether a sentinel of size gapLen can hold a new record
// of size recLen while still leaving room for a minimal trailing
// sentinel. A gap that fits recLen exactly with nothing left over is
// rejected: a zero-length sentinel would violate the invariant that every
// directory block ends in one (spec.md §8's boundary case).
func gapFits(gapLen, recLen uint16) bool {
	return gapLen >= recLen+uint16(dirRecordHeaderSize)
}

// writeRecordAndTrailingSentinel writes rec at offset within block, then
// writes a fresh sentinel covering the rest of gapLen immediately after
// it. Callers must have already checked gapFits(gapLen, rec.RecLen).
func writeRecordAndTrailingSentinel(block []byte, offset int, rec *DirRecord, gapLen uint16) {
	copy(block[offset:], marshalRecord(rec))

	remaining := gapLen - rec.RecLen
	sentinelOffset := offset + int(rec.RecLen)
	sentinel := buildSentinel(remaining)
	copy(block[sentinelOffset:], marshalRecord(sentinel))
}
