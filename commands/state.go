// Package commands tracks the binding state of a command encoder and
// validates draws and dispatches against it.
//
// Setting a pipeline validates the pipeline immediately. Bind groups,
// vertex buffers and the index buffer can be set in any order, so whether
// they satisfy the current pipeline is computed lazily, at the first draw
// or dispatch after a change.
package commands

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/bindgroup"
	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/bitset"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// Aspect is one piece of validation state.
type Aspect uint8

// Aspects tracked by the state tracker. AspectPipeline is set eagerly; the
// others are lazy.
const (
	AspectPipeline Aspect = iota
	AspectBindGroups
	AspectVertexBuffers
	AspectIndexBuffer
)

func (a Aspect) String() string {
	switch a {
	case AspectPipeline:
		return "pipeline"
	case AspectBindGroups:
		return "bind groups"
	case AspectVertexBuffers:
		return "vertex buffers"
	case AspectIndexBuffer:
		return "index buffer"
	}
	return "unknown aspect"
}

// Aspects is a set of aspects.
type Aspects = bitset.Set[Aspect]

var (
	lazyAspects = bitset.Of(AspectBindGroups, AspectVertexBuffers, AspectIndexBuffer)

	dispatchAspects    = bitset.Of(AspectPipeline, AspectBindGroups)
	drawAspects        = bitset.Of(AspectPipeline, AspectBindGroups, AspectVertexBuffers)
	drawIndexedAspects = bitset.Of(AspectPipeline, AspectBindGroups, AspectVertexBuffers, AspectIndexBuffer)
)

type vertexBuffer struct {
	buffer *resource.Buffer
	offset uint64
	size   uint64
}

type indexBuffer struct {
	buffer *resource.Buffer
	format gputypes.IndexFormat
	offset uint64
	size   uint64
}

// StateTracker records the pipeline, bind groups and vertex and index
// buffers set on an encoder. It is not safe for concurrent use.
type StateTracker struct {
	lim     limits.Limits
	aspects Aspects

	pipeline *pipeline.Pipeline
	render   *pipeline.RenderPipeline
	layout   *layout.PipelineLayout

	bindGroups     [binding.MaxBindGroups]*bindgroup.BindGroup
	dynamicOffsets [binding.MaxBindGroups][]uint32

	vertexBuffers [binding.MaxVertexBuffers]vertexBuffer
	vertexSet     pipeline.VertexSlotMask

	index    indexBuffer
	indexSet bool
}

// NewStateTracker returns a tracker with nothing set.
func NewStateTracker(lim limits.Limits) *StateTracker {
	return &StateTracker{lim: lim}
}

// Aspects returns the aspects currently known to be valid.
func (s *StateTracker) Aspects() Aspects { return s.aspects }

// SetComputePipeline makes p the current pipeline.
func (s *StateTracker) SetComputePipeline(p *pipeline.ComputePipeline) error {
	if p == nil || !p.Alive() {
		return validation.Errorf("compute pipeline %s is not valid", p)
	}
	s.setPipeline(&p.Pipeline, nil)
	return nil
}

// SetRenderPipeline makes p the current pipeline.
func (s *StateTracker) SetRenderPipeline(p *pipeline.RenderPipeline) error {
	if p == nil || !p.Alive() {
		return validation.Errorf("render pipeline %s is not valid", p)
	}
	s.setPipeline(&p.Pipeline, p)
	return nil
}

func (s *StateTracker) setPipeline(p *pipeline.Pipeline, render *pipeline.RenderPipeline) {
	s.pipeline = p
	s.render = render
	s.layout = p.Layout()
	s.aspects = s.aspects.Difference(lazyAspects)
	s.aspects.Add(AspectPipeline)
}

// SetBindGroup binds bg at group index g. dynamicOffsets must hold one
// offset per dynamic buffer of the group's layout, in packed order.
func (s *StateTracker) SetBindGroup(g binding.GroupIndex, bg *bindgroup.BindGroup, dynamicOffsets []uint32) error {
	if uint32(g) >= min(s.lim.MaxBindGroups, binding.MaxBindGroups) {
		return validation.Errorf("bind group index (%d) exceeds the max bind groups limit (%d)",
			g, min(s.lim.MaxBindGroups, binding.MaxBindGroups))
	}
	if bg == nil || !bg.Alive() {
		return validation.Errorf("bind group %s is not valid", bg)
	}
	bgl := bg.Layout()
	if n := binding.Index(len(dynamicOffsets)); n != bgl.DynamicBufferCount() {
		return validation.Errorf("dynamic offset count (%d) does not match the number of dynamic buffers (%d) in %s",
			n, bgl.DynamicBufferCount(), bgl)
	}
	for i, off := range dynamicOffsets {
		idx := binding.Index(i)
		info := bgl.Binding(idx)
		buf, _ := info.Buffer()
		align := s.lim.MinStorageBufferOffsetAlignment
		if buf.Type == binding.BufferUniform {
			align = s.lim.MinUniformBufferOffsetAlignment
		}
		if align != 0 && off%align != 0 {
			return validation.Errorf("dynamic offset %d (%d) for binding %d is not a multiple of the %s offset alignment (%d)",
				i, off, info.Binding, buf.Type, align)
		}
		bb, ok := bg.BindingAsBufferBinding(idx)
		if !ok {
			return validation.Internalf("dynamic buffer %d of %s has no buffer binding", i, bg)
		}
		end := bb.Offset + uint64(off) + bb.Size
		if end > bb.Buffer.Size() {
			return validation.Errorf("dynamic offset %d (%d) moves binding %d to [%d, %d), out of bounds of %s (size %d)",
				i, off, info.Binding, bb.Offset+uint64(off), end, bb.Buffer, bb.Buffer.Size())
		}
	}

	s.bindGroups[g] = bg
	s.dynamicOffsets[g] = append(s.dynamicOffsets[g][:0], dynamicOffsets...)
	s.aspects.Remove(AspectBindGroups)
	return nil
}

// SetVertexBuffer binds size bytes of buf at offset to slot. A size of
// bindgroup.WholeSize binds the rest of the buffer.
func (s *StateTracker) SetVertexBuffer(slot pipeline.VertexSlot, buf *resource.Buffer, offset, size uint64) error {
	if uint32(slot) >= min(s.lim.MaxVertexBuffers, binding.MaxVertexBuffers) {
		return validation.Errorf("vertex buffer slot (%d) exceeds the max vertex buffers limit (%d)",
			slot, min(s.lim.MaxVertexBuffers, binding.MaxVertexBuffers))
	}
	size, err := checkBufferRange(buf, gputypes.BufferUsageVertex, "Vertex", offset, size, 4)
	if err != nil {
		return validation.WithContext(err, "validating vertex buffer slot %d", slot)
	}
	s.vertexBuffers[slot] = vertexBuffer{buffer: buf, offset: offset, size: size}
	s.vertexSet.Add(slot)
	s.aspects.Remove(AspectVertexBuffers)
	return nil
}

// SetIndexBuffer binds size bytes of buf at offset as the index buffer.
func (s *StateTracker) SetIndexBuffer(buf *resource.Buffer, f gputypes.IndexFormat, offset, size uint64) error {
	fsize := indexFormatSize(f)
	if fsize == 0 {
		return validation.Errorf("index format (%d) is invalid", uint32(f))
	}
	size, err := checkBufferRange(buf, gputypes.BufferUsageIndex, "Index", offset, size, fsize)
	if err != nil {
		return validation.WithContext(err, "validating the index buffer")
	}
	s.index = indexBuffer{buffer: buf, format: f, offset: offset, size: size}
	s.indexSet = true
	s.aspects.Remove(AspectIndexBuffer)
	return nil
}

func checkBufferRange(buf *resource.Buffer, usage gputypes.BufferUsage, usageName string, offset, size, align uint64) (uint64, error) {
	if buf == nil || !buf.Alive() {
		return 0, validation.Errorf("buffer %s is not valid", buf)
	}
	if !buf.HasUsage(usage) {
		return 0, validation.Errorf("%s lacks the %s usage", buf, usageName)
	}
	if offset%align != 0 {
		return 0, validation.Errorf("offset (%d) is not a multiple of %d", offset, align)
	}
	if offset > buf.Size() {
		return 0, validation.Errorf("offset (%d) is larger than the size (%d) of %s", offset, buf.Size(), buf)
	}
	if size == bindgroup.WholeSize {
		return buf.Size() - offset, nil
	}
	if size > buf.Size()-offset {
		return 0, validation.Errorf("range [%d, %d) does not fit in %s (size %d)", offset, offset+size, buf, buf.Size())
	}
	return size, nil
}

func indexFormatSize(f gputypes.IndexFormat) uint64 {
	switch f {
	case gputypes.IndexFormatUint16:
		return 2
	case gputypes.IndexFormatUint32:
		return 4
	}
	return 0
}

// ValidateCanDispatch checks the state needed by a dispatch.
func (s *StateTracker) ValidateCanDispatch() error {
	if s.pipeline != nil && s.render != nil {
		return validation.Errorf("the current pipeline %s is a render pipeline", s.render)
	}
	return s.ValidateOperation(dispatchAspects)
}

// ValidateCanDraw checks the state needed by a non-indexed draw.
func (s *StateTracker) ValidateCanDraw() error {
	if err := s.requireRender(); err != nil {
		return err
	}
	return s.ValidateOperation(drawAspects)
}

// ValidateCanDrawIndexed checks the state needed by an indexed draw.
func (s *StateTracker) ValidateCanDrawIndexed() error {
	if err := s.requireRender(); err != nil {
		return err
	}
	return s.ValidateOperation(drawIndexedAspects)
}

func (s *StateTracker) requireRender() error {
	if s.pipeline != nil && s.render == nil {
		return validation.Errorf("the current pipeline %s is a compute pipeline", s.pipeline)
	}
	return nil
}

// ValidateOperation checks that every aspect in required holds, computing
// the lazy aspects that are not known to hold. The error describes the
// first failing condition.
func (s *StateTracker) ValidateOperation(required Aspects) error {
	missing := required.Difference(s.aspects)
	if missing.Empty() {
		return nil
	}
	if missing.Has(AspectPipeline) {
		return validation.Errorf("no pipeline set")
	}
	s.recomputeLazyAspects(missing)

	missing = required.Difference(s.aspects)
	if missing.Empty() {
		return nil
	}
	if missing.Has(AspectBindGroups) {
		if err := s.checkBindGroups(); err != nil {
			return err
		}
	}
	if missing.Has(AspectVertexBuffers) {
		if err := s.checkVertexBuffers(); err != nil {
			return err
		}
	}
	if missing.Has(AspectIndexBuffer) {
		if err := s.checkIndexBuffer(); err != nil {
			return err
		}
	}
	return validation.Internalf("aspects %#x failed without a reported cause", missing.Word())
}

func (s *StateTracker) recomputeLazyAspects(missing Aspects) {
	if missing.Has(AspectBindGroups) && s.checkBindGroups() == nil {
		s.aspects.Add(AspectBindGroups)
	}
	if missing.Has(AspectVertexBuffers) && s.checkVertexBuffers() == nil {
		s.aspects.Add(AspectVertexBuffers)
	}
	if missing.Has(AspectIndexBuffer) && s.checkIndexBuffer() == nil {
		s.aspects.Add(AspectIndexBuffer)
	}
}

func (s *StateTracker) checkVertexBuffers() error {
	if s.render == nil {
		return nil
	}
	missing := s.render.VertexBuffersUsed().Difference(s.vertexSet)
	if slot, ok := missing.Highest(); ok {
		return validation.Errorf("vertex buffer slot %d required by %s was not set", slot, s.render)
	}
	return nil
}

func (s *StateTracker) checkIndexBuffer() error {
	if !s.indexSet {
		return validation.Errorf("index buffer was not set")
	}
	if s.render == nil || !s.render.IsStripTopology() {
		return nil
	}
	if want := s.render.StripIndexFormat(); want != gputypes.IndexFormatUndefined && s.index.format != want {
		return validation.Errorf("index format %s does not match the strip index format %s of %s (topology %s)",
			s.index.format, want, s.render, s.render.Topology())
	}
	return nil
}
