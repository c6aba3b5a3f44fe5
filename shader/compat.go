package shader

import (
	"fmt"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/validation"
)

// ValidateCompatibility checks that every binding ep uses exists in pl
// with a compatible layout and that the pixel local storage block and
// immediate data of ep fit pl. The first mismatch is returned.
func ValidateCompatibility(pl *layout.PipelineLayout, ep *EntryPointMetadata) error {
	if err := validateCompatibility(pl, ep); err != nil {
		return validation.WithContext(err, "validating entry point %q (%s stage) against %s", ep.Name, ep.Stage, pl)
	}
	return nil
}

func validateCompatibility(pl *layout.PipelineLayout, ep *EntryPointMetadata) error {
	for g := range binding.GroupIndex(binding.MaxBindGroups) {
		for _, b := range ep.SortedBindings(g) {
			if err := validateBinding(pl.BindGroupLayout(g), ep.Stage, b); err != nil {
				return validation.WithContext(err, "validating group %d binding %d (%s)", g, b.Binding, b.Name)
			}
		}
	}
	if err := validateSamplerTexturePairs(pl, ep); err != nil {
		return err
	}
	if err := validatePixelLocal(pl, ep); err != nil {
		return err
	}
	if ep.ImmediateSize > pl.ImmediateSize() {
		return validation.Errorf("immediate data size (%d) exceeds the pipeline layout immediate size (%d)",
			ep.ImmediateSize, pl.ImmediateSize())
	}
	return nil
}

func validateBinding(bgl *layout.BindGroupLayout, stage binding.ShaderStage, b BindingInfo) error {
	if bgl == nil {
		return validation.Errorf("the pipeline layout has no bind group layout for the group")
	}

	if exp, ok := bgl.ExternalTextureExpansion(b.Binding); ok {
		if b.Kind() != binding.KindExternalTexture {
			return validation.Errorf("the shader declares a %s but the layout has an external texture", b.Kind())
		}
		idx, _ := bgl.BindingIndex(exp.Plane0)
		if vis := bgl.Binding(idx).Visibility; !vis.Has(stage) {
			return validation.Errorf("binding visibility (%s) does not include the %s stage", vis, stage)
		}
		if b.ArraySize > 1 {
			return validation.Errorf("external textures cannot be arrays")
		}
		return nil
	}

	idx, ok := bgl.BindingIndex(b.Binding)
	if !ok || bgl.IsSyntheticBinding(b.Binding) {
		return validation.Errorf("binding is not present in %s", bgl)
	}
	info := bgl.Binding(idx)
	if !info.Visibility.Has(stage) {
		return validation.Errorf("binding visibility (%s) does not include the %s stage", info.Visibility, stage)
	}
	if info.IndexInArray != 0 {
		return validation.Errorf("binding is element %d of a binding array starting at binding %d",
			info.IndexInArray, b.Binding-binding.Number(info.IndexInArray))
	}
	if b.ArraySize > info.ArraySize {
		return validation.Errorf("shader array size (%d) exceeds the layout array size (%d)", b.ArraySize, info.ArraySize)
	}

	switch l := info.Layout.(type) {
	case binding.BufferLayout:
		s, ok := b.Layout.(binding.BufferLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if !bufferTypeCompatible(l.Type, s.Type) {
			return validation.Errorf("buffer type %s in the layout is not compatible with %s in the shader", l.Type, s.Type)
		}
		if l.MinBindingSize != 0 && s.MinBindingSize > l.MinBindingSize {
			return validation.Errorf("minimum buffer size (%d) required by the shader exceeds the layout minimum binding size (%d)",
				s.MinBindingSize, l.MinBindingSize)
		}
	case binding.SamplerLayout:
		s, ok := b.Layout.(binding.SamplerLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if (l.Type == binding.SamplerComparison) != (s.Type == binding.SamplerComparison) {
			return validation.Errorf("sampler type %s in the layout is not compatible with %s in the shader", l.Type, s.Type)
		}
	case binding.StaticSamplerLayout:
		s, ok := b.Layout.(binding.SamplerLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if l.Sampler.IsComparison() != (s.Type == binding.SamplerComparison) {
			return validation.Errorf("static sampler %s comparison (%t) does not match the shader", l.Sampler, l.Sampler.IsComparison())
		}
	case binding.TextureLayout:
		s, ok := b.Layout.(binding.TextureLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if l.Multisampled != s.Multisampled {
			return validation.Errorf("layout multisampled (%t) does not match the shader (%t)", l.Multisampled, s.Multisampled)
		}
		if l.ViewDimension != s.ViewDimension {
			return validation.Errorf("layout view dimension %s does not match the shader view dimension %s", l.ViewDimension, s.ViewDimension)
		}
		if l.SampleType.Bit()&shaderSampleTypes(s.SampleType) == 0 {
			return validation.Errorf("layout sample type %s is not compatible with the shader sample type %s", l.SampleType, s.SampleType)
		}
	case binding.StorageTextureLayout:
		s, ok := b.Layout.(binding.StorageTextureLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if l.Access != s.Access && (l.Access != binding.AccessReadWrite || s.Access != binding.AccessWriteOnly) {
			return validation.Errorf("layout storage access %s is not compatible with the shader access %s", l.Access, s.Access)
		}
		if l.Format != s.Format {
			return validation.Errorf("layout storage format %s does not match the shader format %s", l.Format, s.Format)
		}
		if l.ViewDimension != s.ViewDimension {
			return validation.Errorf("layout view dimension %s does not match the shader view dimension %s", l.ViewDimension, s.ViewDimension)
		}
	case binding.InputAttachmentLayout:
		s, ok := b.Layout.(binding.InputAttachmentLayout)
		if !ok {
			return kindMismatch(b, info)
		}
		if l.SampleType.Bit()&shaderSampleTypes(s.SampleType) == 0 {
			return validation.Errorf("layout sample type %s is not compatible with the shader sample type %s", l.SampleType, s.SampleType)
		}
	default:
		return validation.Internalf("unexpected layout %T", info.Layout)
	}
	return nil
}

func kindMismatch(b BindingInfo, info binding.Info) error {
	return validation.Errorf("the shader declares a %s but the layout has a %s", b.Kind(), info.Kind())
}

// bufferTypeCompatible reports whether a layout buffer type satisfies a
// shader buffer type. Internal storage types stand in for their public
// counterparts.
func bufferTypeCompatible(layoutType, shaderType binding.BufferType) bool {
	switch {
	case layoutType == shaderType:
		return true
	case layoutType == binding.BufferInternalStorage && shaderType == binding.BufferStorage:
		return true
	case layoutType == binding.BufferReadOnlyInternalStorage && shaderType == binding.BufferReadOnlyStorage:
		return true
	}
	return false
}

// shaderSampleTypes returns the layout sample types compatible with a
// reflected shader sample type.
func shaderSampleTypes(t binding.SampleType) format.SampleTypeBit {
	switch t {
	case binding.SampleFloat:
		return format.SampleTypeFloat | format.SampleTypeUnfilterableFloat | format.SampleTypeResolve
	case binding.SampleDepth:
		return format.SampleTypeDepth
	default:
		return t.Bit()
	}
}

func validateSamplerTexturePairs(pl *layout.PipelineLayout, ep *EntryPointMetadata) error {
	for _, p := range ep.SamplerTexturePairs {
		sbgl, tbgl := pl.BindGroupLayout(p.Sampler.Group), pl.BindGroupLayout(p.Texture.Group)
		if sbgl == nil || tbgl == nil {
			continue
		}
		si, ok := sbgl.BindingIndex(p.Sampler.Binding)
		if !ok {
			continue
		}
		filtering := false
		switch s := sbgl.Binding(si).Layout.(type) {
		case binding.SamplerLayout:
			filtering = s.Type == binding.SamplerFiltering
		case binding.StaticSamplerLayout:
			filtering = s.Sampler.IsFiltering()
		}
		if !filtering {
			continue
		}
		ti, ok := tbgl.BindingIndex(p.Texture.Binding)
		if !ok {
			continue
		}
		t, ok := tbgl.Binding(ti).Layout.(binding.TextureLayout)
		if !ok {
			continue
		}
		if t.SampleType != binding.SampleFloat && t.SampleType != binding.SampleInternalResolve {
			return validation.Errorf("texture at group %d binding %d has sample type %s and is sampled by the filtering sampler at group %d binding %d",
				p.Texture.Group, p.Texture.Binding, t.SampleType, p.Sampler.Group, p.Sampler.Binding)
		}
	}
	return nil
}

func validatePixelLocal(pl *layout.PipelineLayout, ep *EntryPointMetadata) error {
	if ep.Stage != binding.StageFragment || !ep.UsesPixelLocal {
		return nil
	}
	pls := pl.PixelLocalStorage()
	if pls == nil {
		return validation.Errorf("the entry point uses pixel local storage but the pipeline layout declares none")
	}
	if size := uint64(len(ep.PixelLocalMembers)) * 4; size != pls.TotalSize {
		return validation.Errorf("pixel local storage block size (%d) does not match the pipeline layout total size (%d)",
			size, pls.TotalSize)
	}
	slots := make(map[uint64]format.ComponentType, len(pls.StorageAttachments))
	for _, a := range pls.StorageAttachments {
		info, ok := format.Lookup(a.Format)
		if !ok {
			return validation.Internalf("pixel local storage format %s is unknown", a.Format)
		}
		slots[a.Offset] = info.Component
	}
	for i, member := range ep.PixelLocalMembers {
		want, ok := slots[uint64(i)*4]
		if !ok {
			// Slots without a storage attachment are implicit R32Uint.
			want = format.ComponentUint
		}
		if member != want {
			return validation.Errorf("pixel local storage member %d has type %s but its slot has type %s",
				i, fmt.Sprint(member), fmt.Sprint(want))
		}
	}
	return nil
}
