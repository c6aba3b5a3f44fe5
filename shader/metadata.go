// Package shader holds the reflection metadata of shader entry points and
// checks it against pipeline layouts.
//
// Metadata is produced by ParseWGSL or built directly by callers with
// their own shader toolchain. Reflected bindings reuse the binding.Layout
// variants with the following conventions:
//
//   - samplers are SamplerComparison or SamplerFiltering, the latter
//     meaning "any non-comparison sampler";
//   - sampled f32 textures use SampleFloat and accept Float,
//     UnfilterableFloat and internal resolve layouts;
//   - depth textures use SampleDepth;
//   - buffers carry the minimum size the shader needs in MinBindingSize.
package shader

import (
	"cmp"
	"maps"
	"slices"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
)

// BindingInfo is one resource binding declared by a shader.
type BindingInfo struct {
	Name      string
	Binding   binding.Number
	ArraySize uint32
	Layout    binding.Layout
}

// Kind returns the binding kind.
func (b BindingInfo) Kind() binding.Kind { return b.Layout.Kind() }

// BindingPoint addresses a binding in a pipeline.
type BindingPoint struct {
	Group   binding.GroupIndex
	Binding binding.Number
}

// SamplerTexturePair records a texture sampled with a sampler.
type SamplerTexturePair struct {
	Sampler BindingPoint
	Texture BindingPoint
}

// Override is a pipeline-overridable constant.
type Override struct {
	Name string
	ID   *uint16
}

// GroupBindings maps binding numbers to reflected bindings of one group.
type GroupBindings map[binding.Number]BindingInfo

// EntryPointMetadata is the reflection of one entry point.
type EntryPointMetadata struct {
	Name  string
	Stage binding.ShaderStage

	Bindings            [binding.MaxBindGroups]GroupBindings
	SamplerTexturePairs []SamplerTexturePair

	// PixelLocalMembers lists the component type of each 4-byte member of
	// the pixel local storage block, when UsesPixelLocal is set.
	UsesPixelLocal    bool
	PixelLocalMembers []format.ComponentType

	ImmediateSize uint32
	Overrides     []Override

	UsesVertexIndex   bool
	UsesInstanceIndex bool
	UsesFragDepth     bool
	UsesSampleMask    bool
	Workgroup         [3]uint32
}

// AddBinding records b in group g.
func (m *EntryPointMetadata) AddBinding(g binding.GroupIndex, b BindingInfo) {
	if m.Bindings[g] == nil {
		m.Bindings[g] = make(GroupBindings)
	}
	if b.ArraySize == 0 {
		b.ArraySize = 1
	}
	m.Bindings[g][b.Binding] = b
}

// SortedBindings returns the bindings of group g in binding number order.
func (m *EntryPointMetadata) SortedBindings(g binding.GroupIndex) []BindingInfo {
	out := slices.Collect(maps.Values(m.Bindings[g]))
	slices.SortFunc(out, func(a, b BindingInfo) int { return cmp.Compare(a.Binding, b.Binding) })
	return out
}

// UsedGroups returns the number of groups up to the highest group with a
// binding.
func (m *EntryPointMetadata) UsedGroups() int {
	n := 0
	for g, bs := range m.Bindings {
		if len(bs) > 0 {
			n = g + 1
		}
	}
	return n
}

// Module is the reflection of a shader module.
type Module struct {
	EntryPoints []*EntryPointMetadata
	Overrides   []Override
}

// EntryPoint returns the entry point named name. An empty name selects the
// only entry point of the given stage.
func (m *Module) EntryPoint(name string, stage binding.ShaderStage) (*EntryPointMetadata, bool) {
	var found *EntryPointMetadata
	for _, ep := range m.EntryPoints {
		if ep.Stage != stage {
			continue
		}
		if name != "" {
			if ep.Name == name {
				return ep, true
			}
			continue
		}
		if found != nil {
			return nil, false
		}
		found = ep
	}
	return found, found != nil
}
