package commands

import (
	"github.com/gogpu/bindcore/bindgroup"
	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// checkBindGroups verifies the bind groups against the current pipeline:
// every group the layout uses is bound with the layout's exact bind group
// layout, unverified buffers are large enough for the pipeline and no two
// writable storage bindings alias.
func (s *StateTracker) checkBindGroups() error {
	if s.pipeline == nil {
		return nil
	}
	for g := range s.layout.UsedGroups().All() {
		bg := s.bindGroups[g]
		if bg == nil {
			return validation.Errorf("bind group at index %d is not set, but %s uses it", g, s.layout)
		}
		want := s.layout.BindGroupLayout(g)
		if bg.Layout() != want {
			return validation.Errorf("%s at index %d has layout %s, which does not match %s of %s",
				bg, g, bg.Layout(), want, s.layout)
		}
		if err := s.checkUnverifiedSizes(g, bg); err != nil {
			return err
		}
	}
	return s.checkAliasing()
}

func (s *StateTracker) checkUnverifiedSizes(g binding.GroupIndex, bg *bindgroup.BindGroup) error {
	mins := s.pipeline.MinBufferSizes(g)
	sizes := bg.UnverifiedBufferSizes()
	bgl := bg.Layout()
	for j, minSize := range mins {
		if j >= len(sizes) {
			return validation.Internalf("%s has %d unverified buffer sizes, the pipeline expects %d", bg, len(sizes), len(mins))
		}
		if sizes[j] < minSize {
			n := bgl.Binding(bgl.UnverifiedBufferIndex(uint32(j))).Binding
			return validation.Errorf("binding %d of %s at index %d is bound with size %d, smaller than the minimum binding size (%d) required by %s",
				n, bg, g, sizes[j], minSize, s.pipeline)
		}
	}
	return nil
}

type storageBuffer struct {
	group  binding.GroupIndex
	number binding.Number
	buffer *resource.Buffer
	offset uint64
	size   uint64
}

type storageTexture struct {
	group  binding.GroupIndex
	number binding.Number
	view   *resource.TextureView
}

// checkAliasing compares every pair of writable storage buffers and every
// pair of writable storage textures visible to the pipeline. The number of
// such bindings is bounded by the per-stage storage limits.
func (s *StateTracker) checkAliasing() error {
	var buffers []storageBuffer
	var textures []storageTexture
	stages := s.pipeline.Stages()

	for g := range s.layout.UsedGroups().All() {
		bg := s.bindGroups[g]
		bgl := bg.Layout()
		dyn := bgl.DynamicBufferCount()
		for i := range bgl.BindingCount() {
			info := bgl.Binding(i)
			if info.Visibility&stages == 0 {
				continue
			}
			switch l := info.Layout.(type) {
			case binding.BufferLayout:
				if !l.Type.IsWritable() {
					continue
				}
				bb, _ := bg.BindingAsBufferBinding(i)
				off := bb.Offset
				if i < dyn {
					off += uint64(s.dynamicOffsets[g][i])
				}
				buffers = append(buffers, storageBuffer{group: g, number: info.Binding, buffer: bb.Buffer, offset: off, size: bb.Size})
			case binding.StorageTextureLayout:
				if !l.Access.IsWritable() {
					continue
				}
				v, _ := bg.BindingAsTextureView(i)
				textures = append(textures, storageTexture{group: g, number: info.Binding, view: v})
			}
		}
	}

	for i := range buffers {
		for j := i + 1; j < len(buffers); j++ {
			a, b := buffers[i], buffers[j]
			if a.buffer != b.buffer {
				continue
			}
			if a.offset < b.offset+b.size && b.offset < a.offset+a.size {
				return validation.Errorf("writable storage buffer binding (group %d, binding %d, range [%d, %d)) aliases "+
					"writable storage buffer binding (group %d, binding %d, range [%d, %d)) on %s",
					a.group, a.number, a.offset, a.offset+a.size,
					b.group, b.number, b.offset, b.offset+b.size, a.buffer)
			}
		}
	}
	for i := range textures {
		for j := i + 1; j < len(textures); j++ {
			a, b := textures[i], textures[j]
			if a.view == nil || b.view == nil || !a.view.Overlaps(b.view) {
				continue
			}
			return validation.Errorf("writable storage texture binding (group %d, binding %d, mip %d, layers [%d, %d)) aliases "+
				"writable storage texture binding (group %d, binding %d, mip %d, layers [%d, %d)) on %s",
				a.group, a.number, a.view.BaseMipLevel(), a.view.BaseArrayLayer(), a.view.BaseArrayLayer()+a.view.ArrayLayerCount(),
				b.group, b.number, b.view.BaseMipLevel(), b.view.BaseArrayLayer(), b.view.BaseArrayLayer()+b.view.ArrayLayerCount(),
				a.view.Texture())
		}
	}
	return nil
}
