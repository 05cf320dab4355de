// Package sffstest provides in-memory image fixtures shared by this
// module's test files, mirroring the teacher's testing package.
package sffstest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// NewImage returns an in-memory, fixed-size read/write/seek stream of
// size bytes, all zeroed, suitable for Init and mkfs-style tests.
func NewImage(t *testing.T, size int) io.ReadWriteSeeker {
	t.Helper()
	require.Greater(t, size, 0, "image size must be positive")
	buf := make([]byte, size)
	return bytesextra.NewReadWriteSeeker(buf)
}

// NewImageFromBytes wraps an existing byte slice as a fixed-size
// read/write/seek stream, for tests that need to seed specific content.
func NewImageFromBytes(data []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(data)
}
