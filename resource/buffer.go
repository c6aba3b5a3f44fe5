package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/validation"
)

// InternalBufferUsage marks usages that are only available to bindcore's
// own passes and never to descriptors supplied by an application.
type InternalBufferUsage uint8

// Internal buffer usages.
const (
	// InternalUsageStorage allows binding as an internal storage buffer
	// even without the public Storage usage (e.g. query resolve targets).
	InternalUsageStorage InternalBufferUsage = 1 << iota
	// InternalUsageReadOnlyStorage allows binding as an internal
	// read-only storage buffer.
	InternalUsageReadOnlyStorage
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label         string
	Size          uint64
	Usage         gputypes.BufferUsage
	InternalUsage InternalBufferUsage
}

// Buffer is a linear allocation bindable as a uniform, storage, vertex or
// index buffer.
type Buffer struct {
	Object

	size     uint64
	usage    gputypes.BufferUsage
	internal InternalBufferUsage
}

// NewBuffer validates desc and creates a buffer.
func NewBuffer(desc *BufferDescriptor, lim limits.Limits) (*Buffer, error) {
	if desc == nil {
		return nil, validation.Errorf("buffer descriptor is nil")
	}
	if desc.Usage == 0 && desc.InternalUsage == 0 {
		return nil, validation.Errorf("buffer usage must not be 0")
	}
	if desc.Size > lim.MaxBufferSize {
		return nil, validation.Errorf("buffer size (%d) exceeds the max buffer size limit (%d)", desc.Size, lim.MaxBufferSize)
	}
	const mapRead = gputypes.BufferUsageMapRead
	const mapWrite = gputypes.BufferUsageMapWrite
	if desc.Usage&mapRead != 0 && desc.Usage&^(mapRead|gputypes.BufferUsageCopyDst) != 0 {
		return nil, validation.Errorf("buffer usage (%#x) combines MapRead with usages other than CopyDst", uint32(desc.Usage))
	}
	if desc.Usage&mapWrite != 0 && desc.Usage&^(mapWrite|gputypes.BufferUsageCopySrc) != 0 {
		return nil, validation.Errorf("buffer usage (%#x) combines MapWrite with usages other than CopySrc", uint32(desc.Usage))
	}

	b := &Buffer{size: desc.Size, usage: desc.Usage, internal: desc.InternalUsage}
	b.Init("Buffer", desc.Label)
	return b, nil
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the public usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// HasUsage reports whether every bit of u is allowed.
func (b *Buffer) HasUsage(u gputypes.BufferUsage) bool { return b.usage&u == u }

// HasInternalUsage reports whether every bit of u is allowed.
func (b *Buffer) HasInternalUsage(u InternalBufferUsage) bool { return b.internal&u == u }
