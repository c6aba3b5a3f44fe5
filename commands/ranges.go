package commands

import (
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/validation"
)

// ValidateBufferInRangeForVertexBuffer checks that every per-vertex buffer
// of the current render pipeline holds the vertices
// [firstVertex, firstVertex+vertexCount).
func (s *StateTracker) ValidateBufferInRangeForVertexBuffer(vertexCount, firstVertex uint32) error {
	if s.render == nil {
		return nil
	}
	for slot := range s.render.VertexBuffersUsedAsVertex().All() {
		if err := s.checkVertexRange(slot, "vertex", uint64(firstVertex)+uint64(vertexCount)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBufferInRangeForInstanceBuffer checks that every per-instance
// buffer of the current render pipeline holds the instances
// [firstInstance, firstInstance+instanceCount).
func (s *StateTracker) ValidateBufferInRangeForInstanceBuffer(instanceCount, firstInstance uint32) error {
	if s.render == nil {
		return nil
	}
	for slot := range s.render.VertexBuffersUsedAsInstance().All() {
		if err := s.checkVertexRange(slot, "instance", uint64(firstInstance)+uint64(instanceCount)); err != nil {
			return err
		}
	}
	return nil
}

// checkVertexRange compares the bound size of slot with the bytes needed
// for strideCount elements. A zero-stride buffer needs one element
// whatever the count.
func (s *StateTracker) checkVertexRange(slot pipeline.VertexSlot, step string, strideCount uint64) error {
	info := s.render.VertexBuffer(slot)
	bound := s.vertexBuffers[slot].size

	if info.ArrayStride == 0 {
		if info.LastStride > bound {
			return validation.Errorf("bound size (%d) of vertex buffer slot %d is smaller than the attribute extent (%d) of its zero-stride layout",
				bound, slot, info.LastStride)
		}
		return nil
	}
	if strideCount == 0 {
		return nil
	}
	required := (strideCount-1)*info.ArrayStride + info.LastStride
	if required > bound {
		return validation.Errorf("%s range requires %d bytes from vertex buffer slot %d (array stride %d, %d elements), but the bound size is %d",
			step, required, slot, info.ArrayStride, strideCount, bound)
	}
	return nil
}

// ValidateIndexBufferInRange checks that the index buffer holds the
// indices [firstIndex, firstIndex+indexCount).
func (s *StateTracker) ValidateIndexBufferInRange(indexCount, firstIndex uint32) error {
	if !s.indexSet {
		return validation.Errorf("index buffer was not set")
	}
	required := (uint64(firstIndex) + uint64(indexCount)) * indexFormatSize(s.index.format)
	if required > s.index.size {
		return validation.Errorf("index range [%d, %d) of format %s requires %d bytes, but the bound index buffer size is %d",
			firstIndex, uint64(firstIndex)+uint64(indexCount), s.index.format, required, s.index.size)
	}
	return nil
}
