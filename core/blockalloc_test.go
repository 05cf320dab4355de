package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
	"github.com/sffs-go/sffs/sffstest"
)

// mountSmallGroupImage builds a fixture with a deliberately tiny
// BlocksPerGroup (overriding Init's blockSize*8 default), so a handful of
// allocated blocks is enough to exercise the group-crossing path of
// AllocateBlocks without needing a multi-megabyte image.
func mountSmallGroupImage(t *testing.T, blocksPerGroup uint32) *core.Context {
	t.Helper()
	sb, err := core.Init(64*1024, 512, 4096)
	require.NoError(t, err)

	dataBlocks := sb.DataBlockCount()
	sb.BlocksPerGroup = blocksPerGroup
	groupsTotal := (dataBlocks + uint64(blocksPerGroup) - 1) / uint64(blocksPerGroup)
	sb.GroupsTotal = uint32(groupsTotal)
	sb.GroupsFree = uint32(groupsTotal)

	stream := sffstest.NewImage(t, 64*1024)
	require.NoError(t, sb.WriteTo(stream))

	ctx, err := core.Mount(stream, 0)
	require.NoError(t, err)
	return ctx
}

func TestAllocateBlocksCrossesGroupBoundary(t *testing.T) {
	ctx := mountSmallGroupImage(t, 8)

	inode, err := core.NewInode(1, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	groupsFreeBefore := ctx.Superblock.GroupsFree
	blocksFreeBefore := ctx.Superblock.BlocksFree

	chosen, err := ctx.AllocateBlocks(inode, 10)
	require.NoError(t, err)
	require.Len(t, chosen, 10)

	seen := make(map[uint32]bool, len(chosen))
	for _, b := range chosen {
		assert.False(t, seen[b], "block %d allocated twice", b)
		seen[b] = true
	}

	groups := make(map[uint32]bool)
	for _, b := range chosen {
		groups[b/8] = true
	}
	assert.Len(t, groups, 2, "10 blocks at 8 per group should span exactly 2 groups")

	assert.EqualValues(t, 10, inode.BlockCount)
	assert.Equal(t, blocksFreeBefore-10, ctx.Superblock.BlocksFree)
	assert.Equal(t, groupsFreeBefore-2, ctx.Superblock.GroupsFree)

	for _, b := range chosen {
		set, err := ctx.DataBitmap.Check(int(b))
		require.NoError(t, err)
		assert.True(t, set)
	}
}

func TestAllocateBlocksGrowsInodeListWhenPrimaryCapacityExhausted(t *testing.T) {
	ctx := mountSmallGroupImage(t, 8)

	inode, err := core.NewInode(1, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	_, err = ctx.AllocateBlocks(inode, core.PrimaryPointerCount+3)
	require.NoError(t, err)
	assert.Greater(t, inode.ListSize, uint32(1))
	assert.EqualValues(t, core.PrimaryPointerCount+3, inode.BlockCount)
}

func TestAllocateBlocksFailsWhenInsufficientSpace(t *testing.T) {
	ctx := mountSmallGroupImage(t, 8)

	inode, err := core.NewInode(1, sffs.S_IFREG|0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.CreateInode(inode))

	_, err = ctx.AllocateBlocks(inode, uint32(ctx.Superblock.BlocksFree)+1)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.NoSpc))
}
