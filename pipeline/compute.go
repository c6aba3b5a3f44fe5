package pipeline

import (
	"fmt"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/shader"
	"github.com/gogpu/bindcore/validation"
)

// ComputePipelineDescriptor describes a compute pipeline. A nil Layout
// requests a default layout.
type ComputePipelineDescriptor struct {
	Label   string
	Layout  *layout.PipelineLayout
	Compute ProgrammableStage
}

// ComputePipeline is a validated compute pipeline.
type ComputePipeline struct {
	Pipeline

	workgroup [3]uint32
}

// NewComputePipeline validates desc and creates a compute pipeline.
func NewComputePipeline(desc *ComputePipelineDescriptor, opts Options) (*ComputePipeline, error) {
	if desc == nil {
		return nil, validation.Errorf("compute pipeline descriptor is nil")
	}
	p, err := newComputePipeline(desc, opts)
	if err != nil {
		name := "[ComputePipeline]"
		if desc.Label != "" {
			name = fmt.Sprintf("[ComputePipeline %q]", desc.Label)
		}
		return nil, validation.WithContext(err, "validating %s", name)
	}
	return p, nil
}

func newComputePipeline(desc *ComputePipelineDescriptor, opts Options) (*ComputePipeline, error) {
	ep, err := desc.Compute.resolve(binding.StageCompute)
	if err != nil {
		return nil, err
	}
	p := &ComputePipeline{workgroup: ep.Workgroup}
	if err := p.init("ComputePipeline", desc.Label, desc.Layout, []*shader.EntryPointMetadata{ep}, opts); err != nil {
		return nil, err
	}
	logging.Logger().Debug("pipeline: created compute pipeline",
		"pipeline", p.String(), "entryPoint", ep.Name, "layout", p.layout.String())
	return p, nil
}

// WorkgroupSize returns the workgroup size of the compute entry point.
func (p *ComputePipeline) WorkgroupSize() [3]uint32 { return p.workgroup }
