package layout

import (
	"bytes"
	"cmp"
	"encoding/binary"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
)

const planeViewDimension = gputypes.TextureViewDimension2D

// compareInfo is the packing order of bind group layouts.
//
// Only three properties are relied upon elsewhere: buffers come first,
// dynamic-offset buffers come first among buffers, and dynamic-offset
// buffers are in binding number order (dynamic offsets are supplied in
// that order). Everything else only has to be deterministic.
func compareInfo(a, b binding.Info) int {
	ab, aIsBuf := a.Layout.(binding.BufferLayout)
	bb, bIsBuf := b.Layout.(binding.BufferLayout)
	if aIsBuf != bIsBuf {
		if aIsBuf {
			return -1
		}
		return 1
	}
	if aIsBuf {
		if ab.HasDynamicOffset != bb.HasDynamicOffset {
			if ab.HasDynamicOffset {
				return -1
			}
			return 1
		}
		if ab.HasDynamicOffset {
			return cmp.Compare(a.Binding, b.Binding)
		}
	}

	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Visibility, b.Visibility); c != 0 {
		return c
	}
	if c := compareLayout(a.Layout, b.Layout); c != 0 {
		return c
	}
	return cmp.Compare(a.Binding, b.Binding)
}

// compareLayout orders two layouts of the same kind.
func compareLayout(a, b binding.Layout) int {
	switch x := a.(type) {
	case binding.BufferLayout:
		y := b.(binding.BufferLayout)
		if c := cmp.Compare(x.MinBindingSize, y.MinBindingSize); c != 0 {
			return c
		}
		return cmp.Compare(x.Type, y.Type)
	case binding.SamplerLayout:
		y := b.(binding.SamplerLayout)
		return cmp.Compare(x.Type, y.Type)
	case binding.TextureLayout:
		y := b.(binding.TextureLayout)
		if x.Multisampled != y.Multisampled {
			if y.Multisampled {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(x.ViewDimension, y.ViewDimension); c != 0 {
			return c
		}
		return cmp.Compare(x.SampleType, y.SampleType)
	case binding.StorageTextureLayout:
		y := b.(binding.StorageTextureLayout)
		if c := cmp.Compare(x.Access, y.Access); c != 0 {
			return c
		}
		if c := cmp.Compare(x.ViewDimension, y.ViewDimension); c != 0 {
			return c
		}
		return cmp.Compare(x.Format, y.Format)
	case binding.StaticSamplerLayout:
		y := b.(binding.StaticSamplerLayout)
		xid, yid := x.Sampler.ID(), y.Sampler.ID()
		if c := bytes.Compare(xid[:], yid[:]); c != 0 {
			return c
		}
		if x.PairedWithTexture != y.PairedWithTexture {
			if y.PairedWithTexture {
				return -1
			}
			return 1
		}
		return cmp.Compare(x.SampledTextureBinding, y.SampledTextureBinding)
	case binding.InputAttachmentLayout:
		y := b.(binding.InputAttachmentLayout)
		return cmp.Compare(x.SampleType, y.SampleType)
	}
	return 0
}

func appendUint32(buf []byte, vs ...uint32) []byte {
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// appendInfo serializes the hashed fields of one packed binding.
func appendInfo(buf []byte, idx binding.Index, info binding.Info) []byte {
	buf = appendUint32(buf, uint32(info.Binding), uint32(idx), uint32(info.Visibility),
		info.ArraySize, info.IndexInArray, uint32(info.Kind()))
	switch l := info.Layout.(type) {
	case binding.BufferLayout:
		buf = appendUint32(buf, uint32(l.Type))
		buf = appendBool(buf, l.HasDynamicOffset)
		buf = binary.LittleEndian.AppendUint64(buf, l.MinBindingSize)
	case binding.SamplerLayout:
		buf = appendUint32(buf, uint32(l.Type))
	case binding.TextureLayout:
		buf = appendUint32(buf, uint32(l.SampleType), uint32(l.ViewDimension))
		buf = appendBool(buf, l.Multisampled)
	case binding.StorageTextureLayout:
		buf = appendUint32(buf, uint32(l.Access), uint32(l.Format), uint32(l.ViewDimension))
	case binding.StaticSamplerLayout:
		id := l.Sampler.ID()
		buf = append(buf, id[:]...)
		buf = appendBool(buf, l.PairedWithTexture)
		buf = appendUint32(buf, uint32(l.SampledTextureBinding))
	case binding.InputAttachmentLayout:
		buf = appendUint32(buf, uint32(l.SampleType))
	}
	return buf
}
