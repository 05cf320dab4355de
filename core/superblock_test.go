package core_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/core"
)

func TestInitOn50MiBImageWith4096ByteBlocks(t *testing.T) {
	sb, err := core.Init(52428800, 4096, 0)
	require.NoError(t, err)

	assert.EqualValues(t, 4096, sb.BlockSize)
	assert.EqualValues(t, sffs.Magic, sb.Magic)
	assert.EqualValues(t, 52428800/4096, sb.BlocksTotal)

	bootBlocks := sb.DataBitmap.StartBlock
	total := bootBlocks + sb.DataBitmap.SizeBlocks + sb.InodeBitmap.SizeBlocks +
		sb.InodeTable.SizeBlocks + sb.DataBlockCount()
	assert.Equal(t, sb.BlocksTotal, total)

	require.NoError(t, sb.SelfCheck())
}

func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	sb, err := core.Init(52428800, 4096, 0)
	require.NoError(t, err)

	data, err := sb.Marshal()
	require.NoError(t, err)
	assert.Len(t, data, core.SuperblockWireSize)

	restored, err := core.UnmarshalSuperblock(data)
	require.NoError(t, err)
	assert.Equal(t, sb, restored)
}

func TestInitRejectsNonPowerOfTwoBlockSize(t *testing.T) {
	_, err := core.Init(1<<20, 1000, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvBlk))
}

func TestInitRejectsBlockSizeExceedingPageSize(t *testing.T) {
	oversized := uint32(os.Getpagesize()) * 2 // still a power of two: page size always is

	_, err := core.Init(uint64(oversized)*1024, oversized, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvBlk))
}

func TestInitRejectsTooSmallImage(t *testing.T) {
	_, err := core.Init(1024, 1024, 0)
	require.Error(t, err)
}

func TestSelfCheckCatchesBadMagic(t *testing.T) {
	sb, err := core.Init(52428800, 4096, 0)
	require.NoError(t, err)

	sb.Magic = 0xDEADBEEF
	err = sb.SelfCheck()
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.Init))
}
