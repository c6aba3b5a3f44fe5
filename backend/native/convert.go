package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/resource"
)

// convertStages lowers a stage mask. The bit values are the same as the
// WebGPU ones but are spelled out so a change on either side is caught.
func convertStages(s binding.ShaderStage) gputypes.ShaderStages {
	var out gputypes.ShaderStages
	if s.Has(binding.StageVertex) {
		out |= gputypes.ShaderStageVertex
	}
	if s.Has(binding.StageFragment) {
		out |= gputypes.ShaderStageFragment
	}
	if s.Has(binding.StageCompute) {
		out |= gputypes.ShaderStageCompute
	}
	return out
}

// BindGroupLayoutEntries lowers every packed binding of l to a HAL layout
// entry. External textures appear as their synthetic planes and parameter
// buffer, binding arrays as one entry per element, static samplers as
// regular samplers and input attachments as 2D sampled textures.
func BindGroupLayoutEntries(l *layout.BindGroupLayout) ([]gputypes.BindGroupLayoutEntry, error) {
	infos := l.Bindings()
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(infos))
	for _, info := range infos {
		e := gputypes.BindGroupLayoutEntry{
			Binding:    uint32(info.Binding),
			Visibility: convertStages(info.Visibility),
		}
		switch b := info.Layout.(type) {
		case binding.BufferLayout:
			e.Buffer = &gputypes.BufferBindingLayout{
				Type:             b.Type.ToGPU(),
				HasDynamicOffset: b.HasDynamicOffset,
				MinBindingSize:   b.MinBindingSize,
			}
		case binding.SamplerLayout:
			e.Sampler = &gputypes.SamplerBindingLayout{Type: b.Type.ToGPU()}
		case binding.StaticSamplerLayout:
			t := gputypes.SamplerBindingTypeNonFiltering
			switch {
			case b.Sampler.IsComparison():
				t = gputypes.SamplerBindingTypeComparison
			case b.Sampler.IsFiltering():
				t = gputypes.SamplerBindingTypeFiltering
			}
			e.Sampler = &gputypes.SamplerBindingLayout{Type: t}
		case binding.TextureLayout:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    b.SampleType.ToGPU(),
				ViewDimension: b.ViewDimension,
				Multisampled:  b.Multisampled,
			}
		case binding.InputAttachmentLayout:
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    b.SampleType.ToGPU(),
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case binding.StorageTextureLayout:
			e.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        b.Access.ToGPU(),
				Format:        b.Format,
				ViewDimension: b.ViewDimension,
			}
		default:
			return nil, fmt.Errorf("%w: binding %d (%s)", ErrUnsupportedBinding, info.Binding, info.Kind())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func bufferDescriptor(b *resource.Buffer) *hal.BufferDescriptor {
	return &hal.BufferDescriptor{Label: b.Label(), Size: b.Size(), Usage: b.Usage()}
}

func textureDescriptor(t *resource.Texture) *hal.TextureDescriptor {
	size := t.Size()
	return &hal.TextureDescriptor{
		Label:         t.Label(),
		Size:          hal.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: size.DepthOrArrayLayers},
		MipLevelCount: t.MipLevelCount(),
		SampleCount:   t.SampleCount(),
		Dimension:     t.Dimension(),
		Format:        t.Format(),
		Usage:         t.Usage(),
	}
}

func viewDescriptor(v *resource.TextureView) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Label:           v.Label(),
		Format:          v.Format(),
		Dimension:       v.Dimension(),
		Aspect:          convertAspect(v),
		BaseMipLevel:    v.BaseMipLevel(),
		MipLevelCount:   v.MipLevelCount(),
		BaseArrayLayer:  v.BaseArrayLayer(),
		ArrayLayerCount: v.ArrayLayerCount(),
	}
}

func convertAspect(v *resource.TextureView) gputypes.TextureAspect {
	full := v.Texture().FormatInfo().Aspects
	switch a := v.Aspects(); {
	case a == full:
		return gputypes.TextureAspectAll
	case a == format.AspectDepth:
		return gputypes.TextureAspectDepthOnly
	case a == format.AspectStencil:
		return gputypes.TextureAspectStencilOnly
	}
	return gputypes.TextureAspectAll
}

func samplerDescriptor(s *resource.Sampler) *hal.SamplerDescriptor {
	d := s.Descriptor()
	mip := gputypes.FilterModeNearest
	if d.MipmapFilter == gputypes.MipmapFilterModeLinear {
		mip = gputypes.FilterModeLinear
	}
	return &hal.SamplerDescriptor{
		Label:        s.Label(),
		AddressModeU: d.AddressModeU,
		AddressModeV: d.AddressModeV,
		AddressModeW: d.AddressModeW,
		MagFilter:    d.MagFilter,
		MinFilter:    d.MinFilter,
		MipmapFilter: mip,
		LodMaxClamp:  32,
		Compare:      d.Compare,
		Anisotropy:   1,
	}
}

// spirvWords converts SPIR-V bytes to little-endian 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
