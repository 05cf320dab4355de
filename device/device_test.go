package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sffs-go/sffs"
	"github.com/sffs-go/sffs/device"
	"github.com/sffs-go/sffs/sffstest"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	stream := sffstest.NewImage(t, 16*4096)
	dev := device.New(stream, 4096, 16, 4)

	payload := make([]byte, 4096*2)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	require.NoError(t, dev.WriteAbsolute(5, payload))

	readBack, err := dev.ReadAbsolute(5, 2)
	require.NoError(t, err)
	assert.Equal(t, payload, readBack)
}

func TestWriteToBlockZeroRejected(t *testing.T) {
	stream := sffstest.NewImage(t, 16*4096)
	dev := device.New(stream, 4096, 16, 4)

	err := dev.WriteAbsolute(0, make([]byte, 4096))
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))
}

func TestDataRelativeAddressingAddsDataStart(t *testing.T) {
	stream := sffstest.NewImage(t, 16*4096)
	dev := device.New(stream, 4096, 16, 4)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = 0xAB
	}
	require.NoError(t, dev.WriteData(1, payload))

	absolute, err := dev.ReadAbsolute(5, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, absolute)

	relative, err := dev.ReadData(1, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, relative)
}

func TestOutOfBoundsWriteFails(t *testing.T) {
	stream := sffstest.NewImage(t, 16*4096)
	dev := device.New(stream, 4096, 16, 4)

	err := dev.WriteAbsolute(15, make([]byte, 4096*2))
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))
}

func TestNonBlockMultipleWriteRejected(t *testing.T) {
	stream := sffstest.NewImage(t, 16*4096)
	dev := device.New(stream, 4096, 16, 4)

	err := dev.WriteAbsolute(1, make([]byte, 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, sffs.New(sffs.InvArg))
}
