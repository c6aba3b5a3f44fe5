package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/bitset"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/shader"
	"github.com/gogpu/bindcore/validation"
)

const (
	// MaxVertexBufferArrayStride is the largest vertex buffer stride.
	MaxVertexBufferArrayStride = 2048

	// MaxVertexAttributes is the number of shader locations for vertex
	// attributes.
	MaxVertexAttributes = 16
)

// VertexSlot indexes the vertex buffer slots of a render pipeline.
type VertexSlot uint32

// VertexSlotMask is a set of vertex buffer slots.
type VertexSlotMask = bitset.Set[VertexSlot]

// VertexState is the vertex stage plus its vertex buffer layouts. The
// index of a buffer layout is its slot.
type VertexState struct {
	ProgrammableStage
	Buffers []gputypes.VertexBufferLayout
}

// PrimitiveState selects the primitive topology. StripIndexFormat may only
// be set for strip topologies and fixes the index format of indexed draws.
type PrimitiveState struct {
	Topology         gputypes.PrimitiveTopology
	StripIndexFormat gputypes.IndexFormat
}

// FragmentState is the fragment stage.
type FragmentState struct {
	ProgrammableStage
}

// RenderPipelineDescriptor describes a render pipeline. A nil Layout
// requests a default layout.
type RenderPipelineDescriptor struct {
	Label     string
	Layout    *layout.PipelineLayout
	Vertex    VertexState
	Primitive PrimitiveState
	Fragment  *FragmentState
}

// VertexBufferInfo is the per-slot vertex buffer data draw validation
// needs. LastStride is the end of the furthest attribute in the stride,
// the size a buffer must have for its last element.
type VertexBufferInfo struct {
	ArrayStride uint64
	StepMode    gputypes.VertexStepMode
	LastStride  uint64
}

// RenderPipeline is a validated render pipeline.
type RenderPipeline struct {
	Pipeline

	vertexBuffers  [binding.MaxVertexBuffers]VertexBufferInfo
	used           VertexSlotMask
	usedAsVertex   VertexSlotMask
	usedAsInstance VertexSlotMask

	topology         gputypes.PrimitiveTopology
	stripIndexFormat gputypes.IndexFormat
}

// NewRenderPipeline validates desc and creates a render pipeline.
func NewRenderPipeline(desc *RenderPipelineDescriptor, opts Options) (*RenderPipeline, error) {
	if desc == nil {
		return nil, validation.Errorf("render pipeline descriptor is nil")
	}
	p, err := newRenderPipeline(desc, opts)
	if err != nil {
		name := "[RenderPipeline]"
		if desc.Label != "" {
			name = fmt.Sprintf("[RenderPipeline %q]", desc.Label)
		}
		return nil, validation.WithContext(err, "validating %s", name)
	}
	return p, nil
}

func newRenderPipeline(desc *RenderPipelineDescriptor, opts Options) (*RenderPipeline, error) {
	p := &RenderPipeline{}

	vs, err := desc.Vertex.resolve(binding.StageVertex)
	if err != nil {
		return nil, validation.WithContext(err, "validating the vertex state")
	}
	if err := p.setVertexBuffers(desc.Vertex.Buffers, opts); err != nil {
		return nil, validation.WithContext(err, "validating the vertex state")
	}
	if err := p.setPrimitive(desc.Primitive); err != nil {
		return nil, validation.WithContext(err, "validating the primitive state")
	}

	eps := []*shader.EntryPointMetadata{vs}
	if desc.Fragment != nil {
		fs, err := desc.Fragment.resolve(binding.StageFragment)
		if err != nil {
			return nil, validation.WithContext(err, "validating the fragment state")
		}
		eps = append(eps, fs)
	}

	if err := p.init("RenderPipeline", desc.Label, desc.Layout, eps, opts); err != nil {
		return nil, err
	}
	logging.Logger().Debug("pipeline: created render pipeline",
		"pipeline", p.String(),
		"stages", p.stages.String(),
		"vertexBuffers", p.used.Word(),
		"topology", p.topology.String())
	return p, nil
}

func (p *RenderPipeline) setVertexBuffers(buffers []gputypes.VertexBufferLayout, opts Options) error {
	if n := uint32(len(buffers)); n > opts.Limits.MaxVertexBuffers || n > binding.MaxVertexBuffers {
		return validation.Errorf("vertex buffer count (%d) exceeds the maximum number of vertex buffers (%d)",
			n, min(opts.Limits.MaxVertexBuffers, binding.MaxVertexBuffers))
	}
	var locations bitset.Set[uint32]
	for i, b := range buffers {
		slot := VertexSlot(i)
		if b.ArrayStride > MaxVertexBufferArrayStride {
			return validation.Errorf("buffers[%d] arrayStride (%d) exceeds the maximum array stride (%d)",
				i, b.ArrayStride, MaxVertexBufferArrayStride)
		}
		if b.ArrayStride%4 != 0 {
			return validation.Errorf("buffers[%d] arrayStride (%d) is not a multiple of 4", i, b.ArrayStride)
		}
		step := b.StepMode
		switch step {
		case gputypes.VertexStepModeUndefined:
			if len(b.Attributes) == 0 {
				continue
			}
			step = gputypes.VertexStepModeVertex
		case gputypes.VertexStepModeVertex, gputypes.VertexStepModeInstance:
		case gputypes.VertexStepModeVertexBufferNotUsed:
			if len(b.Attributes) != 0 {
				return validation.Errorf("buffers[%d] is not used but has %d attributes", i, len(b.Attributes))
			}
			continue
		default:
			return validation.Errorf("buffers[%d] step mode (%d) is invalid", i, uint32(b.StepMode))
		}

		var last uint64
		for j, a := range b.Attributes {
			size := a.Format.Size()
			if size == 0 {
				return validation.Errorf("buffers[%d].attributes[%d] format %s is invalid", i, j, a.Format)
			}
			if a.Offset%min(4, size) != 0 {
				return validation.Errorf("buffers[%d].attributes[%d] offset (%d) is not a multiple of %d",
					i, j, a.Offset, min(4, size))
			}
			limit := b.ArrayStride
			if limit == 0 {
				limit = MaxVertexBufferArrayStride
			}
			if a.Offset+size > limit {
				return validation.Errorf("buffers[%d].attributes[%d] range [%d, %d) does not fit in the array stride (%d)",
					i, j, a.Offset, a.Offset+size, limit)
			}
			if a.ShaderLocation >= MaxVertexAttributes {
				return validation.Errorf("buffers[%d].attributes[%d] shader location (%d) exceeds the maximum (%d)",
					i, j, a.ShaderLocation, MaxVertexAttributes-1)
			}
			if locations.Has(a.ShaderLocation) {
				return validation.Errorf("buffers[%d].attributes[%d] shader location %d is used more than once",
					i, j, a.ShaderLocation)
			}
			locations.Add(a.ShaderLocation)
			last = max(last, a.Offset+size)
		}
		p.vertexBuffers[slot] = VertexBufferInfo{ArrayStride: b.ArrayStride, StepMode: step, LastStride: last}
		p.used.Add(slot)
		if step == gputypes.VertexStepModeInstance {
			p.usedAsInstance.Add(slot)
		} else {
			p.usedAsVertex.Add(slot)
		}
	}
	return nil
}

func (p *RenderPipeline) setPrimitive(ps PrimitiveState) error {
	switch ps.Topology {
	case gputypes.PrimitiveTopologyPointList, gputypes.PrimitiveTopologyLineList,
		gputypes.PrimitiveTopologyTriangleList:
		if ps.StripIndexFormat != gputypes.IndexFormatUndefined {
			return validation.Errorf("strip index format %s is set for the non-strip topology %s",
				ps.StripIndexFormat, ps.Topology)
		}
	case gputypes.PrimitiveTopologyLineStrip, gputypes.PrimitiveTopologyTriangleStrip:
		switch ps.StripIndexFormat {
		case gputypes.IndexFormatUndefined, gputypes.IndexFormatUint16, gputypes.IndexFormatUint32:
		default:
			return validation.Errorf("strip index format (%d) is invalid", uint32(ps.StripIndexFormat))
		}
	default:
		return validation.Errorf("primitive topology (%d) is invalid", uint32(ps.Topology))
	}
	p.topology = ps.Topology
	p.stripIndexFormat = ps.StripIndexFormat
	return nil
}

// VertexBuffer returns the vertex buffer info of a slot.
func (p *RenderPipeline) VertexBuffer(slot VertexSlot) VertexBufferInfo {
	if !p.used.Has(slot) {
		return VertexBufferInfo{}
	}
	return p.vertexBuffers[slot]
}

// VertexBuffersUsed returns the slots the pipeline reads vertex data from.
func (p *RenderPipeline) VertexBuffersUsed() VertexSlotMask { return p.used }

// VertexBuffersUsedAsVertex returns the slots stepped per vertex.
func (p *RenderPipeline) VertexBuffersUsedAsVertex() VertexSlotMask { return p.usedAsVertex }

// VertexBuffersUsedAsInstance returns the slots stepped per instance.
func (p *RenderPipeline) VertexBuffersUsedAsInstance() VertexSlotMask { return p.usedAsInstance }

// Topology returns the primitive topology.
func (p *RenderPipeline) Topology() gputypes.PrimitiveTopology { return p.topology }

// StripIndexFormat returns the index format fixed by a strip topology, or
// IndexFormatUndefined.
func (p *RenderPipeline) StripIndexFormat() gputypes.IndexFormat { return p.stripIndexFormat }

// IsStripTopology reports whether the topology is a strip topology.
func (p *RenderPipeline) IsStripTopology() bool {
	return p.topology == gputypes.PrimitiveTopologyLineStrip || p.topology == gputypes.PrimitiveTopologyTriangleStrip
}
