// Package sffs implements the on-disk layout, allocation engine, and
// inode-list indexing for a single-image, POSIX-flavored user-space file
// system. See the core package for the operations exposed to a kernel
// bridge.
package sffs

import "fmt"

// Kind is one of the error categories a core operation can fail with. It is
// the sentinel half of the two-variant result the package returns: every
// operation either succeeds with a value, or fails with a typed error built
// from one of these.
type Kind string

const (
	// InvArg means the caller violated a documented precondition.
	InvArg Kind = "invalid argument"
	// InvBlk means the image's block size is unsupported: not a power of
	// two, larger than the host page size, or zero.
	InvBlk Kind = "unsupported block size"
	// Init means the self-consistency check on region sizes failed during
	// layout computation.
	Init Kind = "layout initialization failed"
	// MemAlloc means a transient allocation failure occurred.
	MemAlloc Kind = "allocation failure"
	// Fs means an on-disk invariant was violated mid-operation: a bit that
	// was supposed to be clear was set, a chain was shorter than its
	// recorded length, or a region boundary didn't match the superblock.
	// By convention the caller should remount read-only after seeing this.
	Fs Kind = "file system invariant violated"
	// NoSpc means a requested inode or block could not be allocated.
	NoSpc Kind = "no space left on device"
	// DevRead, DevWrite, DevSeek, and DevStat wrap host I/O failures at the
	// corresponding operation.
	DevRead  Kind = "device read failed"
	DevWrite Kind = "device write failed"
	DevSeek  Kind = "device seek failed"
	DevStat  Kind = "device stat failed"
	// NoEnt means a lookup found no entry with the requested name. It is
	// distinguished from Fs: an absent entry is not a corruption.
	NoEnt Kind = "no such entry"
	// EntExists means an insert targeted a name that's already present.
	EntExists Kind = "entry already exists"
)

// Error is the concrete error type every SFFS operation returns. It carries
// a Kind so callers can switch on category, plus an optional message and
// wrapped cause for additional context.
//
// This is the strict two-variant result spec.md §9 asks for: never a bare
// boolean or negative error code overloading the success channel.
type Error struct {
	Kind    Kind
	message string
	cause   error
}

// New creates an Error of the given kind with no extra context.
func New(kind Kind) Error {
	return Error{Kind: kind}
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.message)
}

// WithMessage returns a copy of e with a formatted message appended.
func (e Error) WithMessage(format string, args ...any) Error {
	msg := fmt.Sprintf(format, args...)
	if e.message != "" {
		msg = fmt.Sprintf("%s: %s", e.message, msg)
	}
	return Error{Kind: e.Kind, message: msg, cause: e.cause}
}

// Wrap returns a copy of e with err recorded as the underlying cause, so
// errors.Is/errors.As can see through to it.
func (e Error) Wrap(err error) Error {
	msg := e.message
	if err != nil {
		if msg == "" {
			msg = err.Error()
		} else {
			msg = fmt.Sprintf("%s: %s", msg, err.Error())
		}
	}
	return Error{Kind: e.Kind, message: msg, cause: err}
}

// Unwrap exposes the wrapped cause, if any.
func (e Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an Error of the same Kind, so
// errors.Is(err, sffs.New(sffs.NoEnt)) works regardless of message or cause.
func (e Error) Is(target error) bool {
	other, ok := target.(Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}
