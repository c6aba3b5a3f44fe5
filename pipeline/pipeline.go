// Package pipeline builds compute and render pipelines from reflected shader
// entry points and a pipeline layout.
//
// A pipeline without an explicit layout gets a default layout inferred
// from the bindings its entry points use. Pipeline creation checks every
// entry point against the layout and records, per group, the minimum
// sizes the entry points need for the layout's unverified buffers.
package pipeline

import (
	"strconv"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/resource"
	"github.com/gogpu/bindcore/shader"
	"github.com/gogpu/bindcore/validation"
)

// LayoutFactory creates the layouts of inferred default pipeline layouts.
// Devices implement it to deduplicate layouts through their caches.
type LayoutFactory interface {
	CreateBindGroupLayout(desc *layout.BindGroupLayoutDescriptor) (*layout.BindGroupLayout, error)
	CreatePipelineLayout(desc *layout.PipelineLayoutDescriptor) (*layout.PipelineLayout, error)
}

// Options configures pipeline creation.
type Options struct {
	Limits        limits.Limits
	Compatibility bool

	// Layouts creates default layouts. Nil builds them directly without
	// deduplication.
	Layouts LayoutFactory
}

func (o Options) layoutOptions() layout.Options {
	return layout.Options{Limits: o.Limits, Compatibility: o.Compatibility}
}

func (o Options) factory() LayoutFactory {
	if o.Layouts != nil {
		return o.Layouts
	}
	return directFactory{opts: o.layoutOptions()}
}

type directFactory struct {
	opts layout.Options
}

func (f directFactory) CreateBindGroupLayout(desc *layout.BindGroupLayoutDescriptor) (*layout.BindGroupLayout, error) {
	return layout.NewBindGroupLayout(desc, f.opts)
}

func (f directFactory) CreatePipelineLayout(desc *layout.PipelineLayoutDescriptor) (*layout.PipelineLayout, error) {
	return layout.NewPipelineLayout(desc, f.opts)
}

// ProgrammableStage selects an entry point of a reflected shader module.
// An empty EntryPoint selects the module's only entry point for the stage.
type ProgrammableStage struct {
	Module     *shader.Module
	EntryPoint string

	// Constants overrides pipeline-overridable constants, keyed by name
	// or by numeric override ID.
	Constants map[string]float64
}

func (s *ProgrammableStage) resolve(stage binding.ShaderStage) (*shader.EntryPointMetadata, error) {
	if s.Module == nil {
		return nil, validation.Errorf("the %s stage has no shader module", stage)
	}
	ep, ok := s.Module.EntryPoint(s.EntryPoint, stage)
	if !ok {
		if s.EntryPoint == "" {
			return nil, validation.Errorf("the shader module does not have exactly one %s entry point", stage)
		}
		return nil, validation.Errorf("the shader module has no %s entry point named %q", stage, s.EntryPoint)
	}
	for key := range s.Constants {
		if !hasOverride(s.Module.Overrides, key) {
			return nil, validation.Errorf("pipeline constant %q does not match any override in the shader module", key)
		}
	}
	return ep, nil
}

func hasOverride(overrides []shader.Override, key string) bool {
	id, err := strconv.ParseUint(key, 10, 16)
	for _, o := range overrides {
		if o.Name == key {
			return true
		}
		if err == nil && o.ID != nil && uint64(*o.ID) == id {
			return true
		}
	}
	return false
}

// Pipeline holds the state shared by compute and render pipelines.
type Pipeline struct {
	resource.Object

	layout      *layout.PipelineLayout
	stages      binding.ShaderStage
	entryPoints [binding.NumStages]*shader.EntryPointMetadata

	// minBufferSizes[g][j] is the size the entry points need for the j-th
	// unverified buffer of group g.
	minBufferSizes [binding.MaxBindGroups][]uint64
}

// init resolves the layout and checks each entry point against it. With
// a nil explicit layout, a default layout is inferred. The pipeline holds
// one reference on its layout.
func (p *Pipeline) init(kind, label string, explicit *layout.PipelineLayout, eps []*shader.EntryPointMetadata, opts Options) error {
	for _, ep := range eps {
		p.stages |= ep.Stage
		p.entryPoints[stageIndex(ep.Stage)] = ep
	}

	if explicit != nil {
		if !explicit.Alive() {
			return validation.Errorf("layout %s is destroyed", explicit)
		}
		explicit.AddRef()
		p.layout = explicit
	} else {
		pl, err := inferLayout(eps, opts.factory())
		if err != nil {
			return validation.WithContext(err, "inferring the default pipeline layout")
		}
		p.layout = pl
	}

	for _, ep := range eps {
		if err := shader.ValidateCompatibility(p.layout, ep); err != nil {
			p.layout.Release()
			return err
		}
	}
	p.computeMinBufferSizes()

	p.Init(kind, label)
	p.OnDestroy(func() { p.layout.Release() })
	return nil
}

func stageIndex(s binding.ShaderStage) int {
	for i, st := range binding.Stages {
		if st == s {
			return i
		}
	}
	return 0
}

func (p *Pipeline) computeMinBufferSizes() {
	for g := range binding.GroupIndex(binding.MaxBindGroups) {
		bgl := p.layout.BindGroupLayout(g)
		if bgl == nil || bgl.UnverifiedBufferCount() == 0 {
			continue
		}
		sizes := make([]uint64, bgl.UnverifiedBufferCount())
		for j := range sizes {
			n := bgl.Binding(bgl.UnverifiedBufferIndex(uint32(j))).Binding
			for _, ep := range p.entryPoints {
				if ep == nil {
					continue
				}
				if b, ok := ep.Bindings[g][n]; ok {
					if bl, ok := b.Layout.(binding.BufferLayout); ok {
						sizes[j] = max(sizes[j], bl.MinBindingSize)
					}
				}
			}
		}
		p.minBufferSizes[g] = sizes
	}
}

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() *layout.PipelineLayout { return p.layout }

// Stages returns the stages the pipeline has entry points for.
func (p *Pipeline) Stages() binding.ShaderStage { return p.stages }

// EntryPoint returns the entry point of the given single stage, or nil.
func (p *Pipeline) EntryPoint(stage binding.ShaderStage) *shader.EntryPointMetadata {
	if !p.stages.Has(stage) || stage == binding.StageNone {
		return nil
	}
	return p.entryPoints[stageIndex(stage)]
}

// MinBufferSizes returns the minimum bound sizes required for the
// unverified buffers of group g, in the layout's unverified order.
func (p *Pipeline) MinBufferSizes(g binding.GroupIndex) []uint64 {
	if g >= binding.MaxBindGroups {
		return nil
	}
	return p.minBufferSizes[g]
}

// BindGroupLayout returns the bind group layout of group g, for creating
// bind groups compatible with a default layout.
func (p *Pipeline) BindGroupLayout(g binding.GroupIndex) (*layout.BindGroupLayout, error) {
	if g >= binding.MaxBindGroups {
		return nil, validation.Errorf("group index (%d) exceeds the maximum bind group count (%d)", g, binding.MaxBindGroups)
	}
	bgl := p.layout.BindGroupLayout(g)
	if bgl == nil {
		return nil, validation.Errorf("%s has no bind group layout at group %d", p, g)
	}
	return bgl, nil
}
