package resource

import (
	"math/bits"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/validation"
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label         string
	Size          gputypes.Extent3D
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	MipLevelCount uint32
	SampleCount   uint32
	Usage         gputypes.TextureUsage

	// BindingViewDimension is the only view dimension the texture may be
	// bound with in compatibility mode. Zero derives it from the size.
	BindingViewDimension gputypes.TextureViewDimension
}

// Texture is an image resource.
type Texture struct {
	Object

	size        gputypes.Extent3D
	dimension   gputypes.TextureDimension
	format      format.Info
	mipLevels   uint32
	sampleCount uint32
	usage       gputypes.TextureUsage

	bindingViewDimension gputypes.TextureViewDimension
}

// NewTexture validates desc and creates a texture.
func NewTexture(desc *TextureDescriptor, _ limits.Limits) (*Texture, error) {
	if desc == nil {
		return nil, validation.Errorf("texture descriptor is nil")
	}
	info, ok := format.Lookup(desc.Format)
	if !ok {
		return nil, validation.Errorf("texture format %s is not supported", desc.Format)
	}
	if desc.Usage == 0 {
		return nil, validation.Errorf("texture usage must not be 0")
	}
	if desc.Size.Width == 0 || desc.Size.Height == 0 || desc.Size.DepthOrArrayLayers == 0 {
		return nil, validation.Errorf("texture size (%d, %d, %d) has a zero dimension",
			desc.Size.Width, desc.Size.Height, desc.Size.DepthOrArrayLayers)
	}
	dim := desc.Dimension
	if dim == 0 {
		dim = gputypes.TextureDimension2D
	}
	if dim == gputypes.TextureDimension1D && (desc.Size.Height != 1 || desc.Size.DepthOrArrayLayers != 1) {
		return nil, validation.Errorf("1D texture size (%d, %d, %d) must have height and depth 1",
			desc.Size.Width, desc.Size.Height, desc.Size.DepthOrArrayLayers)
	}

	if info.IsCompressed() {
		if dim == gputypes.TextureDimension1D {
			return nil, validation.Errorf("compressed format %s cannot be used with a 1D texture", desc.Format)
		}
		if desc.Size.Width%info.BlockWidth != 0 || desc.Size.Height%info.BlockHeight != 0 {
			return nil, validation.Errorf("texture size (%d, %d) is not a multiple of the %dx%d block of format %s",
				desc.Size.Width, desc.Size.Height, info.BlockWidth, info.BlockHeight, desc.Format)
		}
	}

	mips := desc.MipLevelCount
	if mips == 0 {
		mips = 1
	}
	if maxMips := maxMipLevels(desc.Size, dim); mips > maxMips {
		return nil, validation.Errorf("mip level count (%d) exceeds the maximum (%d) for size (%d, %d, %d)",
			mips, maxMips, desc.Size.Width, desc.Size.Height, desc.Size.DepthOrArrayLayers)
	}

	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}
	if samples != 1 && samples != 4 {
		return nil, validation.Errorf("sample count (%d) is not 1 or 4", samples)
	}
	if samples > 1 {
		if dim != gputypes.TextureDimension2D || mips != 1 || desc.Size.DepthOrArrayLayers != 1 {
			return nil, validation.Errorf("multisampled textures must be 2D with one mip level and one array layer")
		}
		if desc.Usage&gputypes.TextureUsageStorageBinding != 0 {
			return nil, validation.Errorf("multisampled textures cannot have the StorageBinding usage")
		}
	}
	if desc.Usage&gputypes.TextureUsageStorageBinding != 0 && !info.SupportsStorage {
		return nil, validation.Errorf("format %s does not support the StorageBinding usage", info.Format)
	}

	bvd := desc.BindingViewDimension
	if bvd == 0 {
		bvd = defaultViewDimension(dim, desc.Size.DepthOrArrayLayers)
	}

	t := &Texture{
		size:                 desc.Size,
		dimension:            dim,
		format:               info,
		mipLevels:            mips,
		sampleCount:          samples,
		usage:                desc.Usage,
		bindingViewDimension: bvd,
	}
	t.Init("Texture", desc.Label)
	return t, nil
}

func maxMipLevels(size gputypes.Extent3D, dim gputypes.TextureDimension) uint32 {
	m := size.Width
	switch dim {
	case gputypes.TextureDimension1D:
		return 1
	case gputypes.TextureDimension3D:
		m = max(m, size.Height, size.DepthOrArrayLayers)
	default:
		m = max(m, size.Height)
	}
	return uint32(bits.Len32(m))
}

func defaultViewDimension(dim gputypes.TextureDimension, layers uint32) gputypes.TextureViewDimension {
	switch dim {
	case gputypes.TextureDimension1D:
		return gputypes.TextureViewDimension1D
	case gputypes.TextureDimension3D:
		return gputypes.TextureViewDimension3D
	}
	if layers == 1 {
		return gputypes.TextureViewDimension2D
	}
	return gputypes.TextureViewDimension2DArray
}

// Size returns the texture extent.
func (t *Texture) Size() gputypes.Extent3D { return t.size }

// Dimension returns the texture dimension.
func (t *Texture) Dimension() gputypes.TextureDimension { return t.dimension }

// Format returns the texture format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format.Format }

// FormatInfo returns the description of the texture format.
func (t *Texture) FormatInfo() format.Info { return t.format }

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 { return t.mipLevels }

// SampleCount returns the number of samples per texel.
func (t *Texture) SampleCount() uint32 { return t.sampleCount }

// ArrayLayerCount returns the number of array layers (1 for 3D textures).
func (t *Texture) ArrayLayerCount() uint32 {
	if t.dimension == gputypes.TextureDimension3D {
		return 1
	}
	return t.size.DepthOrArrayLayers
}

// Usage returns the usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// HasUsage reports whether every bit of u is allowed.
func (t *Texture) HasUsage(u gputypes.TextureUsage) bool { return t.usage&u == u }

// BindingViewDimension returns the view dimension the texture is
// restricted to in compatibility mode.
func (t *Texture) BindingViewDimension() gputypes.TextureViewDimension {
	return t.bindingViewDimension
}
