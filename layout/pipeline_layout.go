package layout

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/internal/bitset"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// MaxPixelLocalStorageSize is the largest pixel local storage block, in
// bytes.
const MaxPixelLocalStorageSize = 64

// GroupMask is a set of bind group slots.
type GroupMask = bitset.Set[binding.GroupIndex]

// StorageAttachment places one storage attachment in the pixel local
// storage block.
type StorageAttachment struct {
	Offset uint64
	Format gputypes.TextureFormat
}

// PixelLocalStorage describes the pixel local storage block of a render
// pipeline layout.
type PixelLocalStorage struct {
	TotalSize          uint64
	StorageAttachments []StorageAttachment
}

// PipelineLayoutDescriptor describes a pipeline layout. A nil entry in
// BindGroupLayouts leaves that group unused.
type PipelineLayoutDescriptor struct {
	Label             string
	BindGroupLayouts  []*BindGroupLayout
	ImmediateSize     uint32
	PixelLocalStorage *PixelLocalStorage
}

// PipelineLayout is an ordered set of bind group layouts plus the
// immediate data range and pixel local storage block.
type PipelineLayout struct {
	resource.Object

	groups        [binding.MaxBindGroups]*BindGroupLayout
	mask          GroupMask
	immediateSize uint32
	pls           *PixelLocalStorage
	counts        binding.Counts
	hash          uint64
}

// NewPipelineLayout validates desc and builds a pipeline layout. The
// layout holds a reference on each of its bind group layouts.
func NewPipelineLayout(desc *PipelineLayoutDescriptor, opts Options) (*PipelineLayout, error) {
	if desc == nil {
		desc = &PipelineLayoutDescriptor{}
	}
	p, err := buildPipelineLayout(desc, opts)
	if err != nil {
		name := "[PipelineLayout]"
		if desc.Label != "" {
			name = fmt.Sprintf("[PipelineLayout %q]", desc.Label)
		}
		return nil, validation.WithContext(err, "validating %s", name)
	}
	return p, nil
}

func buildPipelineLayout(desc *PipelineLayoutDescriptor, opts Options) (*PipelineLayout, error) {
	maxGroups := min(int(opts.Limits.MaxBindGroups), binding.MaxBindGroups)
	if len(desc.BindGroupLayouts) > maxGroups {
		return nil, validation.Errorf("bind group layout count (%d) exceeds the maximum bind group limit (%d)",
			len(desc.BindGroupLayouts), maxGroups)
	}

	p := &PipelineLayout{immediateSize: desc.ImmediateSize}
	for i, bgl := range desc.BindGroupLayouts {
		if bgl == nil {
			continue
		}
		if !bgl.Alive() {
			return nil, validation.Errorf("bindGroupLayouts[%d] %s is destroyed", i, bgl)
		}
		g := binding.GroupIndex(i)
		p.groups[g] = bgl
		p.mask.Add(g)
		binding.AccumulateCounts(&p.counts, bgl.Counts())
	}
	if err := binding.ValidateCounts(opts.Limits, p.counts); err != nil {
		return nil, err
	}

	if desc.ImmediateSize%4 != 0 {
		return nil, validation.Errorf("immediate size (%d) is not a multiple of 4", desc.ImmediateSize)
	}
	if desc.ImmediateSize > opts.Limits.MaxImmediateSize {
		return nil, validation.Errorf("immediate size (%d) exceeds the maximum immediate size limit (%d)",
			desc.ImmediateSize, opts.Limits.MaxImmediateSize)
	}

	if desc.PixelLocalStorage != nil {
		pls, err := validatePixelLocalStorage(desc.PixelLocalStorage)
		if err != nil {
			return nil, validation.WithContext(err, "validating the pixel local storage")
		}
		p.pls = pls
	}

	p.hash = p.computeHash()
	p.Init("PipelineLayout", desc.Label)
	for _, bgl := range p.groups {
		if bgl != nil {
			bgl.AddRef()
		}
	}
	p.OnDestroy(func() {
		for _, bgl := range p.groups {
			if bgl != nil {
				bgl.Release()
			}
		}
	})

	logging.Logger().Debug("layout: created pipeline layout",
		"layout", p.String(), "groups", p.mask.Word(), "immediateSize", p.immediateSize)
	return p, nil
}

func validatePixelLocalStorage(in *PixelLocalStorage) (*PixelLocalStorage, error) {
	if in.TotalSize%4 != 0 {
		return nil, validation.Errorf("total size (%d) is not a multiple of 4", in.TotalSize)
	}
	if in.TotalSize > MaxPixelLocalStorageSize {
		return nil, validation.Errorf("total size (%d) exceeds the maximum pixel local storage size (%d)",
			in.TotalSize, MaxPixelLocalStorageSize)
	}
	out := &PixelLocalStorage{TotalSize: in.TotalSize, StorageAttachments: slices.Clone(in.StorageAttachments)}
	used := make(map[uint64]int, len(in.StorageAttachments))
	for i, a := range in.StorageAttachments {
		info, ok := format.Lookup(a.Format)
		if !ok || !info.SupportsPixelLocal {
			return nil, validation.Errorf("storageAttachments[%d] format %s cannot be used with pixel local storage",
				i, a.Format)
		}
		if a.Offset%4 != 0 {
			return nil, validation.Errorf("storageAttachments[%d] offset (%d) is not a multiple of 4", i, a.Offset)
		}
		if a.Offset+uint64(info.BlockByteSize) > in.TotalSize {
			return nil, validation.Errorf("storageAttachments[%d] range [%d, %d) is out of bounds of the total size (%d)",
				i, a.Offset, a.Offset+uint64(info.BlockByteSize), in.TotalSize)
		}
		if j, dup := used[a.Offset]; dup {
			return nil, validation.Errorf("storageAttachments[%d] overlaps storageAttachments[%d] at offset %d", i, j, a.Offset)
		}
		used[a.Offset] = i
	}
	return out, nil
}

func (p *PipelineLayout) computeHash() uint64 {
	h := fnv.New64a()
	var buf []byte
	for g, bgl := range p.groups {
		var gh uint64
		if bgl != nil {
			gh = bgl.Hash()
		}
		buf = binary.LittleEndian.AppendUint32(buf[:0], uint32(g))
		buf = binary.LittleEndian.AppendUint64(buf, gh)
		h.Write(buf)
	}
	buf = binary.LittleEndian.AppendUint32(buf[:0], p.immediateSize)
	if p.pls != nil {
		buf = binary.LittleEndian.AppendUint64(buf, p.pls.TotalSize)
		for _, a := range p.pls.StorageAttachments {
			buf = binary.LittleEndian.AppendUint64(buf, a.Offset)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Format))
		}
	}
	h.Write(buf)
	return h.Sum64()
}

// Hash returns the content hash.
func (p *PipelineLayout) Hash() uint64 { return p.hash }

// Equal reports whether p and o have the same bind group layouts (by
// identity; bind group layouts are deduplicated), immediate size and pixel
// local storage.
func (p *PipelineLayout) Equal(o *PipelineLayout) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil || p.hash != o.hash {
		return false
	}
	if p.groups != o.groups || p.immediateSize != o.immediateSize {
		return false
	}
	if (p.pls == nil) != (o.pls == nil) {
		return false
	}
	if p.pls != nil {
		return p.pls.TotalSize == o.pls.TotalSize &&
			slices.Equal(p.pls.StorageAttachments, o.pls.StorageAttachments)
	}
	return true
}

// BindGroupLayout returns the layout of group g, or nil if unused.
func (p *PipelineLayout) BindGroupLayout(g binding.GroupIndex) *BindGroupLayout {
	if g >= binding.MaxBindGroups {
		return nil
	}
	return p.groups[g]
}

// UsedGroups returns the groups with a bind group layout.
func (p *PipelineLayout) UsedGroups() GroupMask { return p.mask }

// ImmediateSize returns the size of the immediate data range in bytes.
func (p *PipelineLayout) ImmediateSize() uint32 { return p.immediateSize }

// PixelLocalStorage returns the pixel local storage block, or nil.
func (p *PipelineLayout) PixelLocalStorage() *PixelLocalStorage { return p.pls }

// Counts returns the binding counts aggregated over all groups.
func (p *PipelineLayout) Counts() binding.Counts { return p.counts }

// BindingInfo returns the binding at packed index i of group g.
func (p *PipelineLayout) BindingInfo(g binding.GroupIndex, i binding.Index) (binding.Info, bool) {
	bgl := p.BindGroupLayout(g)
	if bgl == nil || i >= bgl.BindingCount() {
		return binding.Info{}, false
	}
	return bgl.Binding(i), true
}

// GroupsInheritUpTo returns the first group index at which bind groups set
// for other cannot be reused by p: the first slot that p does not use or
// whose bind group layout differs from other's. Later matching slots do
// not extend the inherited range.
func (p *PipelineLayout) GroupsInheritUpTo(other *PipelineLayout) binding.GroupIndex {
	if other == nil {
		return 0
	}
	for g := range binding.GroupIndex(binding.MaxBindGroups) {
		if !p.mask.Has(g) || p.groups[g] != other.groups[g] {
			return g
		}
	}
	return binding.MaxBindGroups
}

// InheritedGroupsMask returns the groups whose bind groups stay valid
// when switching from other to p.
func (p *PipelineLayout) InheritedGroupsMask(other *PipelineLayout) GroupMask {
	return bitset.FirstN(p.GroupsInheritUpTo(other))
}
