package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/validation"
)

// TextureViewDescriptor describes a view into a texture. Zero counts mean
// "the remaining levels/layers"; a zero format or dimension is derived
// from the texture.
type TextureViewDescriptor struct {
	Label           string
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	Aspect          gputypes.TextureAspect
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32

	// YCbCr marks a view carrying a YCbCr conversion. Such views may only
	// be bound next to a static sampler with a matching conversion.
	YCbCr bool
}

// TextureView selects a subresource range of a texture.
type TextureView struct {
	Object

	texture   *Texture
	format    format.Info
	dimension gputypes.TextureViewDimension
	aspects   format.Aspect

	baseMip, mipCount     uint32
	baseLayer, layerCount uint32
	ycbcr                 bool
}

// CreateView validates desc against the texture and creates a view.
func (t *Texture) CreateView(desc *TextureViewDescriptor) (*TextureView, error) {
	if desc == nil {
		desc = &TextureViewDescriptor{}
	}
	if !t.Alive() {
		return nil, validation.Errorf("%s is destroyed", t)
	}

	info := t.format
	if desc.Format != 0 && desc.Format != t.format.Format {
		vi, ok := format.Lookup(desc.Format)
		if !ok || !srgbCompatible(vi, t.format) {
			return nil, validation.Errorf("view format %s is not compatible with %s format %s",
				desc.Format, t, t.format.Format)
		}
		info = vi
	}

	aspects, err := resolveAspect(desc.Aspect, t.format)
	if err != nil {
		return nil, validation.WithContext(err, "creating a view of %s", t)
	}

	mipCount := desc.MipLevelCount
	if mipCount == 0 {
		if desc.BaseMipLevel >= t.mipLevels {
			return nil, validation.Errorf("base mip level (%d) is out of range of %s with %d mip levels",
				desc.BaseMipLevel, t, t.mipLevels)
		}
		mipCount = t.mipLevels - desc.BaseMipLevel
	}
	if uint64(desc.BaseMipLevel)+uint64(mipCount) > uint64(t.mipLevels) {
		return nil, validation.Errorf("mip range [%d, %d) is out of range of %s with %d mip levels",
			desc.BaseMipLevel, uint64(desc.BaseMipLevel)+uint64(mipCount), t, t.mipLevels)
	}

	layers := t.ArrayLayerCount()
	dim := desc.Dimension
	layerCount := desc.ArrayLayerCount
	if dim == 0 {
		remaining := layerCount
		if remaining == 0 {
			remaining = layers - min(desc.BaseArrayLayer, layers)
		}
		dim = defaultViewDimension(t.dimension, remaining)
	}
	if layerCount == 0 {
		switch dim {
		case gputypes.TextureViewDimension1D, gputypes.TextureViewDimension2D, gputypes.TextureViewDimension3D:
			layerCount = 1
		case gputypes.TextureViewDimensionCube:
			layerCount = 6
		default:
			if desc.BaseArrayLayer >= layers {
				return nil, validation.Errorf("base array layer (%d) is out of range of %s with %d layers",
					desc.BaseArrayLayer, t, layers)
			}
			layerCount = layers - desc.BaseArrayLayer
		}
	}
	if uint64(desc.BaseArrayLayer)+uint64(layerCount) > uint64(layers) {
		return nil, validation.Errorf("array layer range [%d, %d) is out of range of %s with %d layers",
			desc.BaseArrayLayer, uint64(desc.BaseArrayLayer)+uint64(layerCount), t, layers)
	}
	if err := validateViewDimension(t, dim, layerCount); err != nil {
		return nil, err
	}

	v := &TextureView{
		texture:    t,
		format:     info,
		dimension:  dim,
		aspects:    aspects,
		baseMip:    desc.BaseMipLevel,
		mipCount:   mipCount,
		baseLayer:  desc.BaseArrayLayer,
		layerCount: layerCount,
		ycbcr:      desc.YCbCr,
	}
	v.Init("TextureView", desc.Label)
	t.AddRef()
	v.OnDestroy(func() { t.Release() })
	return v, nil
}

// srgbCompatible reports whether a and b differ only in sRGB encoding.
func srgbCompatible(a, b format.Info) bool {
	return a.SRGBPair != gputypes.TextureFormatUndefined && a.SRGBPair == b.Format
}

func resolveAspect(a gputypes.TextureAspect, f format.Info) (format.Aspect, error) {
	switch a {
	case gputypes.TextureAspectDepthOnly:
		if f.Aspects&format.AspectDepth == 0 {
			return 0, validation.Errorf("aspect DepthOnly selects no aspect of format %s", f.Format)
		}
		return format.AspectDepth, nil
	case gputypes.TextureAspectStencilOnly:
		if f.Aspects&format.AspectStencil == 0 {
			return 0, validation.Errorf("aspect StencilOnly selects no aspect of format %s", f.Format)
		}
		return format.AspectStencil, nil
	}
	return f.Aspects, nil
}

func validateViewDimension(t *Texture, dim gputypes.TextureViewDimension, layerCount uint32) error {
	ok := false
	switch t.dimension {
	case gputypes.TextureDimension1D:
		ok = dim == gputypes.TextureViewDimension1D
	case gputypes.TextureDimension3D:
		ok = dim == gputypes.TextureViewDimension3D
	default:
		switch dim {
		case gputypes.TextureViewDimension2D:
			ok = layerCount == 1
		case gputypes.TextureViewDimension2DArray:
			ok = true
		case gputypes.TextureViewDimensionCube:
			ok = layerCount == 6 && t.size.Width == t.size.Height
		case gputypes.TextureViewDimensionCubeArray:
			ok = layerCount%6 == 0 && t.size.Width == t.size.Height
		}
	}
	if !ok {
		return validation.Errorf("view dimension %d with %d layers is not compatible with %s of dimension %d",
			uint32(dim), layerCount, t, uint32(t.dimension))
	}
	return nil
}

// Texture returns the viewed texture.
func (v *TextureView) Texture() *Texture { return v.texture }

// Format returns the view format.
func (v *TextureView) Format() gputypes.TextureFormat { return v.format.Format }

// FormatInfo returns the description of the view format.
func (v *TextureView) FormatInfo() format.Info { return v.format }

// Dimension returns the view dimension.
func (v *TextureView) Dimension() gputypes.TextureViewDimension { return v.dimension }

// Aspects returns the aspects selected by the view.
func (v *TextureView) Aspects() format.Aspect { return v.aspects }

// SampleTypes returns the shader sample types compatible with the view.
// The result is only meaningful when the view selects a single aspect.
func (v *TextureView) SampleTypes() format.SampleTypeBit {
	return v.format.AspectSampleTypes(v.aspects)
}

// BaseMipLevel returns the first mip level of the view.
func (v *TextureView) BaseMipLevel() uint32 { return v.baseMip }

// MipLevelCount returns the number of mip levels in the view.
func (v *TextureView) MipLevelCount() uint32 { return v.mipCount }

// BaseArrayLayer returns the first array layer of the view.
func (v *TextureView) BaseArrayLayer() uint32 { return v.baseLayer }

// ArrayLayerCount returns the number of array layers in the view.
func (v *TextureView) ArrayLayerCount() uint32 { return v.layerCount }

// IsYCbCr reports whether the view carries a YCbCr conversion.
func (v *TextureView) IsYCbCr() bool { return v.ycbcr }

// Overlaps reports whether the two views share at least one
// (mip level, array layer) subresource of the same texture.
func (v *TextureView) Overlaps(o *TextureView) bool {
	if v.texture != o.texture {
		return false
	}
	mips := v.baseMip < o.baseMip+o.mipCount && o.baseMip < v.baseMip+v.mipCount
	layers := v.baseLayer < o.baseLayer+o.layerCount && o.baseLayer < v.baseLayer+v.layerCount
	return mips && layers && v.aspects&o.aspects != 0
}
