package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/sffstest"
)

// TestCommitBitmapBitsRollsBackOnPartialFailure exercises spec.md §8
// scenario 6: a bitmap invariant violation partway through Phase B must
// undo every bit that Phase B itself set, leaving no partially-committed
// allocation behind. The conflict is manufactured directly (one of the
// "chosen" blocks is already set before commitBitmapBits runs) rather than
// through AllocateBlocks' own selection, since selection always re-checks
// the live bitmap immediately before choosing and would simply skip a
// genuinely conflicting bit.
func TestCommitBitmapBitsRollsBackOnPartialFailure(t *testing.T) {
	sb, err := Init(64*1024, 512, 4096)
	require.NoError(t, err)

	stream := sffstest.NewImage(t, 64*1024)
	require.NoError(t, sb.WriteTo(stream))

	ctx, err := Mount(stream, 0)
	require.NoError(t, err)

	require.NoError(t, ctx.DataBitmap.Set(5))

	chosen := []uint32{3, 4, 5, 6}
	err = ctx.commitBitmapBits(chosen)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.Fs))

	for _, bit := range []uint32{3, 4, 6} {
		set, err := ctx.DataBitmap.Check(int(bit))
		require.NoError(t, err)
		assert.False(t, set, "bit %d should have been rolled back", bit)
	}

	set, err := ctx.DataBitmap.Check(5)
	require.NoError(t, err)
	assert.True(t, set, "bit 5 was already set before the call and must stay set")
}

func TestCommitBitmapBitsAllSucceed(t *testing.T) {
	sb, err := Init(64*1024, 512, 4096)
	require.NoError(t, err)

	stream := sffstest.NewImage(t, 64*1024)
	require.NoError(t, sb.WriteTo(stream))

	ctx, err := Mount(stream, 0)
	require.NoError(t, err)

	require.NoError(t, ctx.commitBitmapBits([]uint32{0, 1, 2}))
	for _, bit := range []uint32{0, 1, 2} {
		set, err := ctx.DataBitmap.Check(int(bit))
		require.NoError(t, err)
		assert.True(t, set)
	}
}
