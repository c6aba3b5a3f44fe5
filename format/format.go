// Package format describes the binding-relevant capabilities of texture
// formats: which aspects they have, which shader sample types can read
// them, and whether they can back storage or pixel-local-storage bindings.
package format

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Aspect is a set of texture aspects.
type Aspect uint8

// Texture aspects.
const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
	AspectPlane0
	AspectPlane1

	AspectNone Aspect = 0
)

// Count returns the number of aspects in the set.
func (a Aspect) Count() int {
	n := 0
	for v := a; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// String lists the aspects, for error messages.
func (a Aspect) String() string {
	if a == AspectNone {
		return "None"
	}
	names := []struct {
		bit  Aspect
		name string
	}{
		{AspectColor, "Color"},
		{AspectDepth, "Depth"},
		{AspectStencil, "Stencil"},
		{AspectPlane0, "Plane0"},
		{AspectPlane1, "Plane1"},
	}
	s := ""
	for _, n := range names {
		if a&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// SampleTypeBit is a set of shader sample types.
type SampleTypeBit uint8

// Sample type bits. SampleTypeResolve is internal: it marks the texture of
// an internal resolve pass and is accepted wherever Float is.
const (
	SampleTypeFloat SampleTypeBit = 1 << iota
	SampleTypeUnfilterableFloat
	SampleTypeDepth
	SampleTypeSint
	SampleTypeUint
	SampleTypeResolve

	SampleTypeNone SampleTypeBit = 0
)

// String lists the sample types, for error messages.
func (s SampleTypeBit) String() string {
	if s == SampleTypeNone {
		return "None"
	}
	names := []struct {
		bit  SampleTypeBit
		name string
	}{
		{SampleTypeFloat, "Float"},
		{SampleTypeUnfilterableFloat, "UnfilterableFloat"},
		{SampleTypeDepth, "Depth"},
		{SampleTypeSint, "Sint"},
		{SampleTypeUint, "Uint"},
		{SampleTypeResolve, "Resolve"},
	}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// ComponentType is the numeric type a format's texels read as.
type ComponentType uint8

// Component types.
const (
	ComponentFloat ComponentType = iota
	ComponentSint
	ComponentUint
)

// String returns the WGSL scalar name of the component type.
func (c ComponentType) String() string {
	switch c {
	case ComponentFloat:
		return "f32"
	case ComponentSint:
		return "i32"
	case ComponentUint:
		return "u32"
	default:
		return fmt.Sprintf("ComponentType(%d)", uint8(c))
	}
}

// Info describes one texture format.
type Info struct {
	Format gputypes.TextureFormat

	Aspects Aspect

	// SampleTypes are the sample types compatible with the color aspect.
	// Depth and stencil aspects are described by AspectSampleTypes.
	SampleTypes SampleTypeBit

	Component ComponentType

	// BlockByteSize is the size of one texel block in bytes. It is 0 for
	// formats whose size is not defined, such as Depth24Plus.
	BlockByteSize uint32

	// BlockWidth and BlockHeight are the texel block dimensions: 1 for
	// uncompressed formats.
	BlockWidth, BlockHeight uint32

	SupportsStorage          bool
	SupportsReadWriteStorage bool
	SupportsPixelLocal       bool
	IsSRGB                   bool

	// SRGBPair is the format that differs from this one only in sRGB
	// encoding, or Undefined.
	SRGBPair gputypes.TextureFormat
}

// IsCompressed reports whether texels are stored in blocks larger than 1x1.
func (i Info) IsCompressed() bool { return i.BlockWidth > 1 || i.BlockHeight > 1 }

// HasDepthOrStencil reports whether the format has a depth or stencil aspect.
func (i Info) HasDepthOrStencil() bool { return i.Aspects&(AspectDepth|AspectStencil) != 0 }

// AspectSampleTypes returns the sample types compatible with reading the
// given single aspect of the format.
func (i Info) AspectSampleTypes(a Aspect) SampleTypeBit {
	switch a {
	case AspectDepth:
		return SampleTypeDepth | SampleTypeUnfilterableFloat
	case AspectStencil:
		return SampleTypeUint
	default:
		return i.SampleTypes
	}
}

// AspectComponentType returns the component type of a single aspect.
func (i Info) AspectComponentType(a Aspect) ComponentType {
	switch a {
	case AspectDepth:
		return ComponentFloat
	case AspectStencil:
		return ComponentUint
	default:
		return i.Component
	}
}

const (
	floatTypes = SampleTypeFloat | SampleTypeUnfilterableFloat
)

// caps are the storage capabilities of a color format.
type caps uint8

const (
	storage caps = 1 << iota
	readWrite
	pixelLocal

	noCaps caps = 0
)

var table = map[gputypes.TextureFormat]Info{}

func register(i Info) {
	if i.BlockWidth == 0 {
		i.BlockWidth, i.BlockHeight = 1, 1
	}
	table[i.Format] = i
}

func color(f gputypes.TextureFormat, c ComponentType, size uint32, cs caps) {
	st := floatTypes
	switch c {
	case ComponentSint:
		st = SampleTypeSint
	case ComponentUint:
		st = SampleTypeUint
	}
	register(Info{
		Format:                   f,
		Aspects:                  AspectColor,
		SampleTypes:              st,
		Component:                c,
		BlockByteSize:            size,
		SupportsStorage:          cs&storage != 0,
		SupportsReadWriteStorage: cs&readWrite != 0,
		SupportsPixelLocal:       cs&pixelLocal != 0,
	})
}

// color32 registers a 32-bit float format, which is not filterable
// without the float32-filterable feature.
func color32(f gputypes.TextureFormat, size uint32, cs caps) {
	color(f, ComponentFloat, size, cs)
	i := table[f]
	i.SampleTypes = SampleTypeUnfilterableFloat
	table[f] = i
}

// srgb registers a filterable float format and its sRGB counterpart.
func srgb(linear, encoded gputypes.TextureFormat, size, bw, bh uint32) {
	for _, f := range []gputypes.TextureFormat{linear, encoded} {
		i := Info{
			Format:        f,
			Aspects:       AspectColor,
			SampleTypes:   floatTypes,
			Component:     ComponentFloat,
			BlockByteSize: size,
			BlockWidth:    bw,
			BlockHeight:   bh,
			IsSRGB:        f == encoded,
			SRGBPair:      encoded,
		}
		if f == encoded {
			i.SRGBPair = linear
		}
		register(i)
	}
}

func allowStorage(f gputypes.TextureFormat) {
	i := table[f]
	i.SupportsStorage = true
	table[f] = i
}

func compressed(f gputypes.TextureFormat, size, bw, bh uint32) {
	register(Info{
		Format:        f,
		Aspects:       AspectColor,
		SampleTypes:   floatTypes,
		Component:     ComponentFloat,
		BlockByteSize: size,
		BlockWidth:    bw,
		BlockHeight:   bh,
	})
}

func depthStencil(f gputypes.TextureFormat, aspects Aspect, size uint32) {
	c := ComponentFloat
	if aspects == AspectStencil {
		c = ComponentUint
	}
	register(Info{Format: f, Aspects: aspects, Component: c, BlockByteSize: size})
}

func init() {
	// 8-bit formats.
	color(gputypes.TextureFormatR8Unorm, ComponentFloat, 1, noCaps)
	color(gputypes.TextureFormatR8Snorm, ComponentFloat, 1, noCaps)
	color(gputypes.TextureFormatR8Uint, ComponentUint, 1, noCaps)
	color(gputypes.TextureFormatR8Sint, ComponentSint, 1, noCaps)

	// 16-bit formats.
	color(gputypes.TextureFormatR16Unorm, ComponentFloat, 2, noCaps)
	color(gputypes.TextureFormatR16Snorm, ComponentFloat, 2, noCaps)
	color(gputypes.TextureFormatR16Uint, ComponentUint, 2, noCaps)
	color(gputypes.TextureFormatR16Sint, ComponentSint, 2, noCaps)
	color(gputypes.TextureFormatR16Float, ComponentFloat, 2, noCaps)
	color(gputypes.TextureFormatRG8Unorm, ComponentFloat, 2, noCaps)
	color(gputypes.TextureFormatRG8Snorm, ComponentFloat, 2, noCaps)
	color(gputypes.TextureFormatRG8Uint, ComponentUint, 2, noCaps)
	color(gputypes.TextureFormatRG8Sint, ComponentSint, 2, noCaps)

	// 32-bit formats.
	color32(gputypes.TextureFormatR32Float, 4, storage|readWrite|pixelLocal)
	color(gputypes.TextureFormatR32Uint, ComponentUint, 4, storage|readWrite|pixelLocal)
	color(gputypes.TextureFormatR32Sint, ComponentSint, 4, storage|readWrite|pixelLocal)
	color(gputypes.TextureFormatRG16Unorm, ComponentFloat, 4, noCaps)
	color(gputypes.TextureFormatRG16Snorm, ComponentFloat, 4, noCaps)
	color(gputypes.TextureFormatRG16Uint, ComponentUint, 4, noCaps)
	color(gputypes.TextureFormatRG16Sint, ComponentSint, 4, noCaps)
	color(gputypes.TextureFormatRG16Float, ComponentFloat, 4, noCaps)
	srgb(gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb, 4, 1, 1)
	color(gputypes.TextureFormatRGBA8Snorm, ComponentFloat, 4, storage)
	color(gputypes.TextureFormatRGBA8Uint, ComponentUint, 4, storage)
	color(gputypes.TextureFormatRGBA8Sint, ComponentSint, 4, storage)
	srgb(gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb, 4, 1, 1)
	allowStorage(gputypes.TextureFormatRGBA8Unorm)

	// Packed 32-bit formats.
	color(gputypes.TextureFormatRGB10A2Uint, ComponentUint, 4, noCaps)
	color(gputypes.TextureFormatRGB10A2Unorm, ComponentFloat, 4, noCaps)
	color(gputypes.TextureFormatRG11B10Ufloat, ComponentFloat, 4, noCaps)
	color(gputypes.TextureFormatRGB9E5Ufloat, ComponentFloat, 4, noCaps)

	// 64-bit formats.
	color32(gputypes.TextureFormatRG32Float, 8, storage)
	color(gputypes.TextureFormatRG32Uint, ComponentUint, 8, storage)
	color(gputypes.TextureFormatRG32Sint, ComponentSint, 8, storage)
	color(gputypes.TextureFormatRGBA16Unorm, ComponentFloat, 8, noCaps)
	color(gputypes.TextureFormatRGBA16Snorm, ComponentFloat, 8, noCaps)
	color(gputypes.TextureFormatRGBA16Uint, ComponentUint, 8, storage)
	color(gputypes.TextureFormatRGBA16Sint, ComponentSint, 8, storage)
	color(gputypes.TextureFormatRGBA16Float, ComponentFloat, 8, storage)

	// 128-bit formats.
	color32(gputypes.TextureFormatRGBA32Float, 16, storage)
	color(gputypes.TextureFormatRGBA32Uint, ComponentUint, 16, storage)
	color(gputypes.TextureFormatRGBA32Sint, ComponentSint, 16, storage)

	// Depth and stencil formats.
	depthStencil(gputypes.TextureFormatStencil8, AspectStencil, 1)
	depthStencil(gputypes.TextureFormatDepth16Unorm, AspectDepth, 2)
	depthStencil(gputypes.TextureFormatDepth24Plus, AspectDepth, 0)
	depthStencil(gputypes.TextureFormatDepth24PlusStencil8, AspectDepth|AspectStencil, 0)
	depthStencil(gputypes.TextureFormatDepth32Float, AspectDepth, 4)
	depthStencil(gputypes.TextureFormatDepth32FloatStencil8, AspectDepth|AspectStencil, 0)

	// BC formats.
	srgb(gputypes.TextureFormatBC1RGBAUnorm, gputypes.TextureFormatBC1RGBAUnormSrgb, 8, 4, 4)
	srgb(gputypes.TextureFormatBC2RGBAUnorm, gputypes.TextureFormatBC2RGBAUnormSrgb, 16, 4, 4)
	srgb(gputypes.TextureFormatBC3RGBAUnorm, gputypes.TextureFormatBC3RGBAUnormSrgb, 16, 4, 4)
	compressed(gputypes.TextureFormatBC4RUnorm, 8, 4, 4)
	compressed(gputypes.TextureFormatBC4RSnorm, 8, 4, 4)
	compressed(gputypes.TextureFormatBC5RGUnorm, 16, 4, 4)
	compressed(gputypes.TextureFormatBC5RGSnorm, 16, 4, 4)
	compressed(gputypes.TextureFormatBC6HRGBUfloat, 16, 4, 4)
	compressed(gputypes.TextureFormatBC6HRGBFloat, 16, 4, 4)
	srgb(gputypes.TextureFormatBC7RGBAUnorm, gputypes.TextureFormatBC7RGBAUnormSrgb, 16, 4, 4)

	// ETC2 and EAC formats.
	srgb(gputypes.TextureFormatETC2RGB8Unorm, gputypes.TextureFormatETC2RGB8UnormSrgb, 8, 4, 4)
	srgb(gputypes.TextureFormatETC2RGB8A1Unorm, gputypes.TextureFormatETC2RGB8A1UnormSrgb, 8, 4, 4)
	srgb(gputypes.TextureFormatETC2RGBA8Unorm, gputypes.TextureFormatETC2RGBA8UnormSrgb, 16, 4, 4)
	compressed(gputypes.TextureFormatEACR11Unorm, 8, 4, 4)
	compressed(gputypes.TextureFormatEACR11Snorm, 8, 4, 4)
	compressed(gputypes.TextureFormatEACRG11Unorm, 16, 4, 4)
	compressed(gputypes.TextureFormatEACRG11Snorm, 16, 4, 4)

	// ASTC formats all use 16-byte blocks.
	for _, a := range []struct {
		linear, encoded gputypes.TextureFormat
		w, h            uint32
	}{
		{gputypes.TextureFormatASTC4x4Unorm, gputypes.TextureFormatASTC4x4UnormSrgb, 4, 4},
		{gputypes.TextureFormatASTC5x4Unorm, gputypes.TextureFormatASTC5x4UnormSrgb, 5, 4},
		{gputypes.TextureFormatASTC5x5Unorm, gputypes.TextureFormatASTC5x5UnormSrgb, 5, 5},
		{gputypes.TextureFormatASTC6x5Unorm, gputypes.TextureFormatASTC6x5UnormSrgb, 6, 5},
		{gputypes.TextureFormatASTC6x6Unorm, gputypes.TextureFormatASTC6x6UnormSrgb, 6, 6},
		{gputypes.TextureFormatASTC8x5Unorm, gputypes.TextureFormatASTC8x5UnormSrgb, 8, 5},
		{gputypes.TextureFormatASTC8x6Unorm, gputypes.TextureFormatASTC8x6UnormSrgb, 8, 6},
		{gputypes.TextureFormatASTC8x8Unorm, gputypes.TextureFormatASTC8x8UnormSrgb, 8, 8},
		{gputypes.TextureFormatASTC10x5Unorm, gputypes.TextureFormatASTC10x5UnormSrgb, 10, 5},
		{gputypes.TextureFormatASTC10x6Unorm, gputypes.TextureFormatASTC10x6UnormSrgb, 10, 6},
		{gputypes.TextureFormatASTC10x8Unorm, gputypes.TextureFormatASTC10x8UnormSrgb, 10, 8},
		{gputypes.TextureFormatASTC10x10Unorm, gputypes.TextureFormatASTC10x10UnormSrgb, 10, 10},
		{gputypes.TextureFormatASTC12x10Unorm, gputypes.TextureFormatASTC12x10UnormSrgb, 12, 10},
		{gputypes.TextureFormatASTC12x12Unorm, gputypes.TextureFormatASTC12x12UnormSrgb, 12, 12},
	} {
		srgb(a.linear, a.encoded, 16, a.w, a.h)
	}
}

// Lookup returns the description of f.
func Lookup(f gputypes.TextureFormat) (Info, bool) {
	i, ok := table[f]
	return i, ok
}

// ByName returns the format whose name matches name, ignoring case.
func ByName(name string) (gputypes.TextureFormat, bool) {
	for f := range table {
		if strings.EqualFold(f.String(), name) {
			return f, true
		}
	}
	return gputypes.TextureFormatUndefined, false
}
