package resource

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/limits"
)

func newTestTexture(t *testing.T, layers, mips uint32) *Texture {
	t.Helper()
	tex, err := NewTexture(&TextureDescriptor{
		Label:         "tex",
		Size:          gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: layers},
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		MipLevelCount: mips,
		SampleCount:   1,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}, limits.Default())
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	return tex
}

func TestObjectRefCount(t *testing.T) {
	var o Object
	o.Init("Buffer", "vertices")
	destroyed := 0
	o.OnDestroy(func() { destroyed++ })

	o.AddRef()
	if o.Release() {
		t.Fatal("first release must not destroy")
	}
	if !o.Release() {
		t.Fatal("last release must report destruction")
	}
	if destroyed != 1 {
		t.Errorf("destroy hooks ran %d times, want 1", destroyed)
	}
	if o.Release() {
		t.Error("over-release must not destroy again")
	}
	if got := o.String(); got != `[Buffer "vertices"]` {
		t.Errorf("String() = %q", got)
	}
}

func TestTryAddRef(t *testing.T) {
	var o Object
	o.Init("BindGroupLayout", "")
	if !o.TryAddRef() || o.Refs() != 2 {
		t.Fatalf("TryAddRef on a live object: Refs() = %d", o.Refs())
	}
	o.Release()
	o.Release()
	if o.TryAddRef() {
		t.Error("TryAddRef revived a released object")
	}
	if o.Refs() != 0 {
		t.Errorf("Refs() = %d, want 0", o.Refs())
	}
}

func TestObjectStringUnlabeled(t *testing.T) {
	var o Object
	o.Init("Sampler", "")
	if s := o.String(); !strings.HasPrefix(s, "[Sampler ") || len(s) != len("[Sampler ]")+8 {
		t.Errorf("String() = %q", s)
	}
}

func TestNewBuffer(t *testing.T) {
	lim := limits.Default()
	tests := []struct {
		name    string
		desc    BufferDescriptor
		wantErr bool
	}{
		{"uniform", BufferDescriptor{Size: 256, Usage: gputypes.BufferUsageUniform}, false},
		{"no usage", BufferDescriptor{Size: 256}, true},
		{"internal only", BufferDescriptor{Size: 16, InternalUsage: InternalUsageStorage}, false},
		{"too large", BufferDescriptor{Size: lim.MaxBufferSize + 1, Usage: gputypes.BufferUsageStorage}, true},
		{"map read with copy dst", BufferDescriptor{Size: 4, Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst}, false},
		{"map read with storage", BufferDescriptor{Size: 4, Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageStorage}, true},
		{"map write with uniform", BufferDescriptor{Size: 4, Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageUniform}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuffer(&tt.desc, lim)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBuffer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTextureRejects(t *testing.T) {
	base := TextureDescriptor{
		Size:          gputypes.Extent3D{Width: 16, Height: 16, DepthOrArrayLayers: 1},
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
		Usage:         gputypes.TextureUsageTextureBinding,
	}
	tests := []struct {
		name   string
		mutate func(*TextureDescriptor)
	}{
		{"zero width", func(d *TextureDescriptor) { d.Size.Width = 0 }},
		{"too many mips", func(d *TextureDescriptor) { d.MipLevelCount = 6 }},
		{"bad sample count", func(d *TextureDescriptor) { d.SampleCount = 2 }},
		{"multisampled mips", func(d *TextureDescriptor) { d.SampleCount = 4; d.MipLevelCount = 2 }},
		{"storage on bgra", func(d *TextureDescriptor) {
			d.Format = gputypes.TextureFormatBGRA8Unorm
			d.Usage |= gputypes.TextureUsageStorageBinding
		}},
		{"no usage", func(d *TextureDescriptor) { d.Usage = 0 }},
		{"storage on rgb10a2", func(d *TextureDescriptor) {
			d.Format = gputypes.TextureFormatRGB10A2Unorm
			d.Usage |= gputypes.TextureUsageStorageBinding
		}},
		{"storage on compressed", func(d *TextureDescriptor) {
			d.Format = gputypes.TextureFormatBC1RGBAUnorm
			d.Usage |= gputypes.TextureUsageStorageBinding
		}},
		{"unaligned compressed", func(d *TextureDescriptor) {
			d.Format = gputypes.TextureFormatASTC6x6Unorm
		}},
		{"compressed 1D", func(d *TextureDescriptor) {
			d.Format = gputypes.TextureFormatBC7RGBAUnorm
			d.Dimension = gputypes.TextureDimension1D
			d.Size = gputypes.Extent3D{Width: 16, Height: 1, DepthOrArrayLayers: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			if _, err := NewTexture(&d, limits.Default()); err == nil {
				t.Error("NewTexture() succeeded, want error")
			}
		})
	}
}

func TestNewTextureFormats(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		usage  gputypes.TextureUsage
	}{
		{gputypes.TextureFormatRG8Unorm, gputypes.TextureUsageTextureBinding},
		{gputypes.TextureFormatRGBA16Uint, gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding},
		{gputypes.TextureFormatRGB10A2Unorm, gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment},
		{gputypes.TextureFormatRG11B10Ufloat, gputypes.TextureUsageTextureBinding},
		{gputypes.TextureFormatRGBA8Snorm, gputypes.TextureUsageStorageBinding},
		{gputypes.TextureFormatRG32Sint, gputypes.TextureUsageStorageBinding},
		{gputypes.TextureFormatDepth16Unorm, gputypes.TextureUsageRenderAttachment},
		{gputypes.TextureFormatDepth32FloatStencil8, gputypes.TextureUsageTextureBinding},
		{gputypes.TextureFormatBC3RGBAUnormSrgb, gputypes.TextureUsageTextureBinding},
		{gputypes.TextureFormatETC2RGBA8Unorm, gputypes.TextureUsageTextureBinding},
		{gputypes.TextureFormatASTC8x8Unorm, gputypes.TextureUsageTextureBinding},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			tex, err := NewTexture(&TextureDescriptor{
				Size:   gputypes.Extent3D{Width: 32, Height: 32, DepthOrArrayLayers: 1},
				Format: tt.format,
				Usage:  tt.usage,
			}, limits.Default())
			if err != nil {
				t.Fatalf("NewTexture: %v", err)
			}
			if tex.Format() != tt.format {
				t.Errorf("Format() = %s", tex.Format())
			}
		})
	}
}

func TestCreateViewSRGB(t *testing.T) {
	tex, err := NewTexture(&TextureDescriptor{
		Size:   gputypes.Extent3D{Width: 16, Height: 16, DepthOrArrayLayers: 1},
		Format: gputypes.TextureFormatBC1RGBAUnormSrgb,
		Usage:  gputypes.TextureUsageTextureBinding,
	}, limits.Default())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tex.CreateView(&TextureViewDescriptor{Format: gputypes.TextureFormatBC1RGBAUnorm}); err != nil {
		t.Errorf("linear view of an sRGB texture: %v", err)
	}
	// Same block size and sample types, but not an sRGB pair.
	if _, err := tex.CreateView(&TextureViewDescriptor{Format: gputypes.TextureFormatBC4RUnorm}); err == nil {
		t.Error("BC4RUnorm view of a BC1RGBAUnormSrgb texture succeeded")
	}
}

func TestTextureBindingViewDimension(t *testing.T) {
	if got := newTestTexture(t, 1, 1).BindingViewDimension(); got != gputypes.TextureViewDimension2D {
		t.Errorf("single layer = %v, want 2D", got)
	}
	if got := newTestTexture(t, 4, 1).BindingViewDimension(); got != gputypes.TextureViewDimension2DArray {
		t.Errorf("four layers = %v, want 2DArray", got)
	}
}

func TestCreateViewDefaults(t *testing.T) {
	tex := newTestTexture(t, 6, 3)
	v, err := tex.CreateView(nil)
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	if v.Dimension() != gputypes.TextureViewDimension2DArray {
		t.Errorf("Dimension() = %v, want 2DArray", v.Dimension())
	}
	if v.MipLevelCount() != 3 || v.ArrayLayerCount() != 6 {
		t.Errorf("range = %d mips, %d layers", v.MipLevelCount(), v.ArrayLayerCount())
	}
	if v.Aspects() != format.AspectColor {
		t.Errorf("Aspects() = %v", v.Aspects())
	}
	if tex.Refs() != 2 {
		t.Errorf("texture refs = %d, want 2 (view holds one)", tex.Refs())
	}
	v.Release()
	if tex.Refs() != 1 {
		t.Errorf("texture refs after view release = %d, want 1", tex.Refs())
	}
}

func TestCreateViewRanges(t *testing.T) {
	tex := newTestTexture(t, 6, 3)
	tests := []struct {
		name    string
		desc    TextureViewDescriptor
		wantErr bool
	}{
		{"cube", TextureViewDescriptor{Dimension: gputypes.TextureViewDimensionCube}, false},
		{"single layer", TextureViewDescriptor{Dimension: gputypes.TextureViewDimension2D, BaseArrayLayer: 5}, false},
		{"layer out of range", TextureViewDescriptor{BaseArrayLayer: 4, ArrayLayerCount: 3}, true},
		{"mip out of range", TextureViewDescriptor{BaseMipLevel: 2, MipLevelCount: 2}, true},
		{"2D with layers", TextureViewDescriptor{Dimension: gputypes.TextureViewDimension2D, ArrayLayerCount: 2}, true},
		{"3D on 2D texture", TextureViewDescriptor{Dimension: gputypes.TextureViewDimension3D}, true},
		{"depth aspect on color", TextureViewDescriptor{Aspect: gputypes.TextureAspectDepthOnly}, true},
		{"srgb reinterpretation", TextureViewDescriptor{Format: gputypes.TextureFormatRGBA8UnormSrgb}, false},
		{"incompatible format", TextureViewDescriptor{Format: gputypes.TextureFormatR32Float}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tex.CreateView(&tt.desc)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateView() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestViewOverlaps(t *testing.T) {
	tex := newTestTexture(t, 4, 2)
	other := newTestTexture(t, 4, 2)
	mk := func(tx *Texture, mip, layer uint32) *TextureView {
		v, err := tx.CreateView(&TextureViewDescriptor{
			Dimension:    gputypes.TextureViewDimension2D,
			BaseMipLevel: mip, MipLevelCount: 1,
			BaseArrayLayer: layer, ArrayLayerCount: 1,
		})
		if err != nil {
			t.Fatalf("CreateView: %v", err)
		}
		return v
	}
	a := mk(tex, 0, 1)
	if !a.Overlaps(mk(tex, 0, 1)) {
		t.Error("identical subresources must overlap")
	}
	if a.Overlaps(mk(tex, 1, 1)) {
		t.Error("different mips must not overlap")
	}
	if a.Overlaps(mk(tex, 0, 2)) {
		t.Error("different layers must not overlap")
	}
	if a.Overlaps(mk(other, 0, 1)) {
		t.Error("different textures must not overlap")
	}
}

func TestSamplerProperties(t *testing.T) {
	s, err := NewSampler(&SamplerDescriptor{MagFilter: gputypes.FilterModeLinear})
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsFiltering() || s.IsComparison() {
		t.Errorf("filtering=%v comparison=%v", s.IsFiltering(), s.IsComparison())
	}
	c, _ := NewSampler(&SamplerDescriptor{Compare: gputypes.CompareFunctionAlways})
	if !c.IsComparison() {
		t.Error("compare function makes a comparison sampler")
	}
	if _, err := NewSampler(&SamplerDescriptor{Compare: gputypes.CompareFunctionAlways, YCbCr: true}); err == nil {
		t.Error("YCbCr comparison sampler must be rejected")
	}
}

func TestExternalTexture(t *testing.T) {
	tex := newTestTexture(t, 1, 1)
	plane, _ := tex.CreateView(nil)
	params, _ := NewBuffer(&BufferDescriptor{Size: ExternalTextureParamsSize, Usage: gputypes.BufferUsageUniform}, limits.Default())

	et, err := NewExternalTexture(&ExternalTextureDescriptor{Plane0: plane, Params: params})
	if err != nil {
		t.Fatalf("NewExternalTexture: %v", err)
	}
	if et.Plane(1) != plane {
		t.Error("missing plane 1 must alias plane 0")
	}
	if params.Refs() != 2 {
		t.Errorf("params refs = %d, want 2", params.Refs())
	}
	et.Release()
	if params.Refs() != 1 || plane.Refs() != 1 {
		t.Errorf("refs after release: params %d plane %d", params.Refs(), plane.Refs())
	}

	small, _ := NewBuffer(&BufferDescriptor{Size: 16, Usage: gputypes.BufferUsageUniform}, limits.Default())
	if _, err := NewExternalTexture(&ExternalTextureDescriptor{Plane0: plane, Params: small}); err == nil {
		t.Error("undersized params buffer must be rejected")
	}
}
