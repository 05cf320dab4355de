package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
)

func TestGrowInodeListSequentialGrowth(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	require.NoError(t, ctx.GrowInodeList(inode, 5))
	assert.EqualValues(t, 6, inode.ListSize)
	assert.NotEqual(t, inode.InodeNumber, inode.LastLentry)

	tail, err := ctx.ReadSupplementary(inode.LastLentry)
	require.NoError(t, err)
	assert.EqualValues(t, 0, tail.NextEntry)

	readBack, err := ctx.ReadInode(10)
	require.NoError(t, err)
	assert.Equal(t, inode, readBack)
}

func TestGrowInodeListTwiceExtendsExistingChain(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	require.NoError(t, ctx.GrowInodeList(inode, 2))
	firstTail := inode.LastLentry

	require.NoError(t, ctx.GrowInodeList(inode, 3))
	assert.EqualValues(t, 6, inode.ListSize)
	assert.NotEqual(t, firstTail, inode.LastLentry)

	oldTail, err := ctx.ReadSupplementary(firstTail)
	require.NoError(t, err)
	assert.NotZero(t, oldTail.NextEntry)
}

func TestGrowInodeListRejectsWhenCapExceeded(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)
	ctx.Superblock.ListCap = 2

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	err = ctx.GrowInodeList(inode, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.NoSpc))
}

func TestGrowInodeListZeroCapIsUnlimited(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)
	ctx.Superblock.ListCap = 0

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	require.NoError(t, ctx.GrowInodeList(inode, 50))
	assert.EqualValues(t, 51, inode.ListSize)
}
