package pipeline

import (
	"maps"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/shader"
	"github.com/gogpu/bindcore/validation"
)

// inferLayout builds the default pipeline layout of a set of entry points:
// one bind group layout per used group, holding the union of the bindings
// the stages use with merged visibility. Unused groups below the highest
// used group are left empty.
func inferLayout(eps []*shader.EntryPointMetadata, f LayoutFactory) (*layout.PipelineLayout, error) {
	var groups [binding.MaxBindGroups]map[binding.Number]*binding.LayoutEntry
	var immediate uint32
	for _, ep := range eps {
		if ep.UsesPixelLocal {
			return nil, validation.Errorf("entry point %q uses pixel local storage, which requires an explicit pipeline layout", ep.Name)
		}
		immediate = max(immediate, ep.ImmediateSize)
		for g := range binding.GroupIndex(binding.MaxBindGroups) {
			for _, b := range ep.SortedBindings(g) {
				e, err := entryFromShader(b, ep.Stage)
				if err != nil {
					return nil, validation.WithContext(err, "group %d binding %d (%s)", g, b.Binding, b.Name)
				}
				if groups[g] == nil {
					groups[g] = make(map[binding.Number]*binding.LayoutEntry)
				}
				prev, ok := groups[g][b.Binding]
				if !ok {
					groups[g][b.Binding] = e
					continue
				}
				if err := mergeEntry(prev, e); err != nil {
					return nil, validation.WithContext(err, "group %d binding %d (%s)", g, b.Binding, b.Name)
				}
			}
		}
	}

	last := -1
	for g, entries := range groups {
		if len(entries) > 0 {
			last = g
		}
	}
	bgls := make([]*layout.BindGroupLayout, last+1)
	defer func() {
		for _, bgl := range bgls {
			if bgl != nil {
				bgl.Release()
			}
		}
	}()
	for g := range bgls {
		if len(groups[g]) == 0 {
			continue
		}
		keys := slices.Sorted(maps.Keys(groups[g]))
		entries := make([]binding.LayoutEntry, 0, len(keys))
		for _, n := range keys {
			entries = append(entries, *groups[g][n])
		}
		bgl, err := f.CreateBindGroupLayout(&layout.BindGroupLayoutDescriptor{Entries: entries})
		if err != nil {
			return nil, validation.WithContext(err, "creating the layout of group %d", g)
		}
		bgls[g] = bgl
	}

	// The pipeline layout holds its own references; the deferred release
	// drops the ones taken above.
	return f.CreatePipelineLayout(&layout.PipelineLayoutDescriptor{
		BindGroupLayouts: bgls,
		ImmediateSize:    (immediate + 3) &^ 3,
	})
}

// entryFromShader converts a reflected binding into a layout entry visible
// to stage.
func entryFromShader(b shader.BindingInfo, stage binding.ShaderStage) (*binding.LayoutEntry, error) {
	e := &binding.LayoutEntry{Binding: b.Binding, Visibility: stage}
	if b.ArraySize > 1 {
		e.BindingArraySize = b.ArraySize
	}
	switch l := b.Layout.(type) {
	case binding.BufferLayout:
		e.Buffer = &binding.BufferBindingLayout{Type: l.Type.ToGPU(), MinBindingSize: l.MinBindingSize}
	case binding.SamplerLayout:
		e.Sampler = &binding.SamplerBindingLayout{Type: l.Type.ToGPU()}
	case binding.TextureLayout:
		st := l.SampleType.ToGPU()
		if l.Multisampled && l.SampleType == binding.SampleFloat {
			st = gputypes.TextureSampleTypeUnfilterableFloat
		}
		e.Texture = &binding.TextureBindingLayout{SampleType: st, ViewDimension: l.ViewDimension, Multisampled: l.Multisampled}
	case binding.StorageTextureLayout:
		e.StorageTexture = &binding.StorageTextureBindingLayout{
			Access:        l.Access.ToGPU(),
			Format:        l.Format,
			ViewDimension: l.ViewDimension,
		}
	case binding.ExternalTextureLayout:
		e.ExternalTexture = &binding.ExternalTextureBindingLayout{}
	case binding.StaticSamplerLayout, binding.InputAttachmentLayout:
		return nil, validation.Errorf("a %s cannot appear in a default layout", b.Kind())
	default:
		return nil, validation.Internalf("unexpected shader layout %T", b.Layout)
	}
	return e, nil
}

// mergeEntry folds the use of a binding by another stage into dst.
func mergeEntry(dst, src *binding.LayoutEntry) error {
	dst.Visibility |= src.Visibility
	dst.BindingArraySize = max(dst.BindingArraySize, src.BindingArraySize)
	switch {
	case dst.Buffer != nil && src.Buffer != nil:
		if dst.Buffer.Type != src.Buffer.Type {
			return validation.Errorf("the stages use conflicting buffer types %s and %s", dst.Buffer.Type, src.Buffer.Type)
		}
		dst.Buffer.MinBindingSize = max(dst.Buffer.MinBindingSize, src.Buffer.MinBindingSize)
	case dst.Sampler != nil && src.Sampler != nil:
		if dst.Sampler.Type != src.Sampler.Type {
			return validation.Errorf("the stages use conflicting sampler types %s and %s", dst.Sampler.Type, src.Sampler.Type)
		}
	case dst.Texture != nil && src.Texture != nil:
		if dst.Texture.ViewDimension != src.Texture.ViewDimension || dst.Texture.Multisampled != src.Texture.Multisampled {
			return validation.Errorf("the stages use the texture with conflicting view dimensions or multisampling")
		}
		if dst.Texture.SampleType != src.Texture.SampleType {
			unfilterable := gputypes.TextureSampleTypeUnfilterableFloat
			floats := []gputypes.TextureSampleType{gputypes.TextureSampleTypeFloat, unfilterable}
			if !slices.Contains(floats, dst.Texture.SampleType) || !slices.Contains(floats, src.Texture.SampleType) {
				return validation.Errorf("the stages use conflicting texture sample types (%d and %d)",
					uint32(dst.Texture.SampleType), uint32(src.Texture.SampleType))
			}
			dst.Texture.SampleType = unfilterable
		}
	case dst.StorageTexture != nil && src.StorageTexture != nil:
		if *dst.StorageTexture != *src.StorageTexture {
			return validation.Errorf("the stages declare the storage texture differently")
		}
	case dst.ExternalTexture != nil && src.ExternalTexture != nil:
	default:
		return validation.Errorf("the stages use the binding as different kinds of resources")
	}
	return nil
}
