package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
)

func TestResolveBlockPrimaryPointer(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))
	inode.Pointers[3] = 777

	res, err := ctx.ResolveBlock(inode, 3, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 777, res.BlockID)
	assert.Equal(t, inode.InodeNumber, res.OwningInode)
	assert.Equal(t, 3, res.SlotIndex)
}

func TestResolveBlockSpillsIntoSupplementary(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))
	require.NoError(t, ctx.GrowInodeList(inode, 1))

	n := uint64(core.PrimaryPointerCount + 2)
	res, err := ctx.ResolveBlock(inode, n, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.BlockID)
	assert.Equal(t, inode.LastLentry, res.OwningInode)
	assert.Equal(t, 2, res.SlotIndex)
}

func TestResolveBlockChainTooShortReturnsFs(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	_, err = ctx.ResolveBlock(inode, uint64(core.PrimaryPointerCount+5), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.Fs))
}

func TestResolveBlockWithResolveLastUsesFinalIndex(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))
	inode.Pointers[0] = 111
	inode.Pointers[1] = 222
	inode.BlockCount = 2

	res, err := ctx.ResolveBlock(inode, 0, core.ResolveLast)
	require.NoError(t, err)
	assert.EqualValues(t, 222, res.BlockID)
	assert.Equal(t, 1, res.SlotIndex)
}

func TestResolveBlockWithResolveReadFetchesContents(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	chosen, err := ctx.AllocateBlocks(inode, 1)
	require.NoError(t, err)
	payload := make([]byte, ctx.Superblock.BlockSize)
	payload[0] = 0xAB
	require.NoError(t, ctx.Device.WriteData(uint64(chosen[0]), payload))

	res, err := ctx.ResolveBlock(inode, 0, core.ResolveRead)
	require.NoError(t, err)
	require.Len(t, res.Contents, int(ctx.Superblock.BlockSize))
	assert.EqualValues(t, 0xAB, res.Contents[0])
}
