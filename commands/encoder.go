package commands

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/bindgroup"
	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/pipeline"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/validation"
)

// passEncoder defers errors the way command encoders do: the first
// failing call is recorded, later calls are ignored, and End reports it.
type passEncoder struct {
	kind    string
	state   *StateTracker
	err     error
	ended   bool
	encoded int
}

func (e *passEncoder) record(f func() error) {
	if e.err != nil {
		return
	}
	if e.ended {
		e.err = validation.Errorf("%s is already ended", e.kind)
		return
	}
	if err := f(); err != nil {
		e.err = err
		return
	}
	e.encoded++
}

func (e *passEncoder) end() error {
	if e.ended {
		return validation.Errorf("%s is already ended", e.kind)
	}
	e.ended = true
	logging.Logger().Debug("commands: pass ended", "pass", e.kind, "commands", e.encoded, "failed", e.err != nil)
	if e.err != nil {
		return validation.WithContext(e.err, "encoding %s", e.kind)
	}
	return nil
}

// Err returns the first recorded error without ending the pass.
func (e *passEncoder) Err() error { return e.err }

// State returns the pass's state tracker.
func (e *passEncoder) State() *StateTracker { return e.state }

// ComputePassEncoder records a compute pass.
type ComputePassEncoder struct {
	passEncoder
}

// NewComputePassEncoder starts a compute pass.
func NewComputePassEncoder(lim limits.Limits) *ComputePassEncoder {
	return &ComputePassEncoder{passEncoder{kind: "[ComputePassEncoder]", state: NewStateTracker(lim)}}
}

// SetPipeline sets the compute pipeline.
func (e *ComputePassEncoder) SetPipeline(p *pipeline.ComputePipeline) {
	e.record(func() error { return e.state.SetComputePipeline(p) })
}

// SetBindGroup binds bg at group index g.
func (e *ComputePassEncoder) SetBindGroup(g binding.GroupIndex, bg *bindgroup.BindGroup, dynamicOffsets ...uint32) {
	e.record(func() error { return e.state.SetBindGroup(g, bg, dynamicOffsets) })
}

// DispatchWorkgroups records a dispatch.
func (e *ComputePassEncoder) DispatchWorkgroups(x, y, z uint32) {
	e.record(func() error {
		if err := e.state.ValidateCanDispatch(); err != nil {
			return validation.WithContext(err, "validating DispatchWorkgroups(%d, %d, %d)", x, y, z)
		}
		return nil
	})
}

// End finishes the pass and returns the first error recorded in it.
func (e *ComputePassEncoder) End() error { return e.end() }

// RenderPassEncoder records a render pass.
type RenderPassEncoder struct {
	passEncoder
}

// NewRenderPassEncoder starts a render pass.
func NewRenderPassEncoder(lim limits.Limits) *RenderPassEncoder {
	return &RenderPassEncoder{passEncoder{kind: "[RenderPassEncoder]", state: NewStateTracker(lim)}}
}

// SetPipeline sets the render pipeline.
func (e *RenderPassEncoder) SetPipeline(p *pipeline.RenderPipeline) {
	e.record(func() error { return e.state.SetRenderPipeline(p) })
}

// SetBindGroup binds bg at group index g.
func (e *RenderPassEncoder) SetBindGroup(g binding.GroupIndex, bg *bindgroup.BindGroup, dynamicOffsets ...uint32) {
	e.record(func() error { return e.state.SetBindGroup(g, bg, dynamicOffsets) })
}

// SetVertexBuffer binds a vertex buffer range to slot.
func (e *RenderPassEncoder) SetVertexBuffer(slot pipeline.VertexSlot, buf *resource.Buffer, offset, size uint64) {
	e.record(func() error { return e.state.SetVertexBuffer(slot, buf, offset, size) })
}

// SetIndexBuffer binds an index buffer range.
func (e *RenderPassEncoder) SetIndexBuffer(buf *resource.Buffer, f gputypes.IndexFormat, offset, size uint64) {
	e.record(func() error { return e.state.SetIndexBuffer(buf, f, offset, size) })
}

// Draw records a non-indexed draw.
func (e *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.record(func() error {
		err := e.state.ValidateCanDraw()
		if err == nil {
			err = e.state.ValidateBufferInRangeForVertexBuffer(vertexCount, firstVertex)
		}
		if err == nil {
			err = e.state.ValidateBufferInRangeForInstanceBuffer(instanceCount, firstInstance)
		}
		if err != nil {
			return validation.WithContext(err, "validating Draw(%d, %d, %d, %d)", vertexCount, instanceCount, firstVertex, firstInstance)
		}
		return nil
	})
}

// DrawIndexed records an indexed draw. Per-vertex buffers are not range
// checked since the indices are not known.
func (e *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	e.record(func() error {
		err := e.state.ValidateCanDrawIndexed()
		if err == nil {
			err = e.state.ValidateIndexBufferInRange(indexCount, firstIndex)
		}
		if err == nil {
			err = e.state.ValidateBufferInRangeForInstanceBuffer(instanceCount, firstInstance)
		}
		if err != nil {
			return validation.WithContext(err, "validating DrawIndexed(%d, %d, %d, %d, %d)",
				indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
		}
		return nil
	})
}

// End finishes the pass and returns the first error recorded in it.
func (e *RenderPassEncoder) End() error { return e.end() }
