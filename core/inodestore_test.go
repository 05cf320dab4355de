package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
	"github.com/sffs-go/sffs/sffstest"
)

func mountFreshImage(t *testing.T, imageSize int) *core.Context {
	t.Helper()
	sb, err := core.Init(uint64(imageSize), 4096, 0)
	require.NoError(t, err)

	stream := sffstest.NewImage(t, imageSize)
	require.NoError(t, sb.WriteTo(stream))

	ctx, err := core.Mount(stream, 0)
	require.NoError(t, err)
	return ctx
}

func TestCreateInodeThenReadRoundTrips(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	inode, err := core.NewInode(10, sffs.S_IFREG|0644, 1000, 1000)
	require.NoError(t, err)

	require.NoError(t, ctx.CreateInode(inode))

	readBack, err := ctx.ReadInode(10)
	require.NoError(t, err)
	assert.Equal(t, inode, readBack)

	set, err := ctx.InodeBitmap.Check(10)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestReadMissingInodeReturnsNoEnt(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	_, err := ctx.ReadInode(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.NoEnt))
}

func TestNewInodeRejectsAmbiguousFileType(t *testing.T) {
	_, err := core.NewInode(5, sffs.S_IFDIR|sffs.S_IFREG, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))
}

func TestAllocateInodeNumberSkipsReservedAndInUse(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)

	first, err := ctx.AllocateInodeNumber()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)

	inode, err := core.NewInode(first, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	second, err := ctx.AllocateInodeNumber()
	require.NoError(t, err)
	assert.EqualValues(t, 2, second)
}

func TestFreeInodesCountDecrementsOnCreate(t *testing.T) {
	ctx := mountFreshImage(t, 8*1024*1024)
	before := ctx.Superblock.InodesFree

	inode, err := core.NewInode(1, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	assert.Equal(t, before-1, ctx.Superblock.InodesFree)
}
