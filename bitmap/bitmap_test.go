package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/bitmap"
)

func TestSetThenCheck(t *testing.T) {
	b := bitmap.New(64)

	ok, err := b.Check(10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(10))

	ok, err = b.Check(10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetRefusesAlreadySetBit(t *testing.T) {
	b := bitmap.New(64)
	require.NoError(t, b.Set(5))

	err := b.Set(5)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.Fs))
}

func TestClearIsUnconditional(t *testing.T) {
	b := bitmap.New(64)
	require.NoError(t, b.Clear(3))
	require.NoError(t, b.Set(3))
	require.NoError(t, b.Clear(3))
	require.NoError(t, b.Clear(3))

	ok, err := b.Check(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountFree(t *testing.T) {
	b := bitmap.New(16)
	require.NoError(t, b.Set(0))
	require.NoError(t, b.Set(1))

	assert.Equal(t, 14, b.CountFree(0))
}

func TestGroupIsEmpty(t *testing.T) {
	b := bitmap.New(32)

	empty, err := b.GroupIsEmpty(1, 8)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, b.Set(9))

	empty, err = b.GroupIsEmpty(1, 8)
	require.NoError(t, err)
	assert.False(t, empty)

	empty, err = b.GroupIsEmpty(0, 8)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestOutOfRangeReturnsInvArg(t *testing.T) {
	b := bitmap.New(8)

	_, err := b.Check(100)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))

	err = b.Set(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))
}
