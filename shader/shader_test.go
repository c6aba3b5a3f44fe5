package shader

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/resource"
)

const testWGSL = `
struct Params {
    scale: vec4<f32>,
    count: u32,
}

struct Particles {
    data: array<vec4<f32>>,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;
@group(1) @binding(0) var<storage, read> particles: Particles;

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
    return particles.data[vi] * params.scale;
}

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, uv);
}
`

func TestParseWGSL(t *testing.T) {
	mod, err := ParseWGSL(testWGSL)
	if err != nil {
		t.Fatalf("ParseWGSL: %v", err)
	}
	if len(mod.EntryPoints) != 2 {
		t.Fatalf("entry points = %d, want 2", len(mod.EntryPoints))
	}

	vs, ok := mod.EntryPoint("", binding.StageVertex)
	if !ok {
		t.Fatal("no vertex entry point")
	}
	if vs.Name != "vs_main" {
		t.Errorf("vertex name = %q", vs.Name)
	}
	if !vs.UsesVertexIndex || vs.UsesInstanceIndex {
		t.Errorf("builtins: vertex_index=%t instance_index=%t", vs.UsesVertexIndex, vs.UsesInstanceIndex)
	}
	if len(vs.Bindings[0]) != 1 || len(vs.Bindings[1]) != 1 {
		t.Fatalf("vertex bindings = %v", vs.Bindings)
	}
	u, ok := vs.Bindings[0][0].Layout.(binding.BufferLayout)
	if !ok || u.Type != binding.BufferUniform || u.MinBindingSize < 20 {
		t.Errorf("params layout = %+v", vs.Bindings[0][0].Layout)
	}
	s, ok := vs.Bindings[1][0].Layout.(binding.BufferLayout)
	if !ok || s.Type != binding.BufferReadOnlyStorage || s.MinBindingSize == 0 {
		t.Errorf("particles layout = %+v", vs.Bindings[1][0].Layout)
	}
	if vs.UsedGroups() != 2 {
		t.Errorf("vertex UsedGroups = %d, want 2", vs.UsedGroups())
	}

	fs, ok := mod.EntryPoint("fs_main", binding.StageFragment)
	if !ok {
		t.Fatal("no fragment entry point")
	}
	got := fs.SortedBindings(0)
	if len(got) != 2 || got[0].Binding != 1 || got[1].Binding != 2 {
		t.Fatalf("fragment bindings = %+v", got)
	}
	if tl, ok := got[0].Layout.(binding.TextureLayout); !ok ||
		tl.SampleType != binding.SampleFloat || tl.ViewDimension != gputypes.TextureViewDimension2D {
		t.Errorf("tex layout = %+v", got[0].Layout)
	}
	if sl, ok := got[1].Layout.(binding.SamplerLayout); !ok || sl.Type != binding.SamplerFiltering {
		t.Errorf("samp layout = %+v", got[1].Layout)
	}
	want := SamplerTexturePair{Sampler: BindingPoint{0, 2}, Texture: BindingPoint{0, 1}}
	if len(fs.SamplerTexturePairs) != 1 || fs.SamplerTexturePairs[0] != want {
		t.Errorf("pairs = %+v, want [%+v]", fs.SamplerTexturePairs, want)
	}
}

func TestParseWGSLErrors(t *testing.T) {
	if _, err := ParseWGSL("fn broken( {"); err == nil || !strings.HasPrefix(err.Error(), "shader: ") {
		t.Errorf("syntax error = %v", err)
	}
	src := `
@group(4) @binding(0) var<uniform> u: vec4<f32>;
@fragment fn main() -> @location(0) vec4<f32> { return u; }
`
	if _, err := ParseWGSL(src); err == nil || !strings.Contains(err.Error(), "group 4") {
		t.Errorf("group 4 error = %v", err)
	}
}

func TestModuleEntryPoint(t *testing.T) {
	mod := &Module{EntryPoints: []*EntryPointMetadata{
		{Name: "a", Stage: binding.StageCompute},
		{Name: "b", Stage: binding.StageCompute},
		{Name: "f", Stage: binding.StageFragment},
	}}
	if _, ok := mod.EntryPoint("", binding.StageCompute); ok {
		t.Error("ambiguous compute entry point resolved")
	}
	if ep, ok := mod.EntryPoint("b", binding.StageCompute); !ok || ep.Name != "b" {
		t.Errorf("EntryPoint(b) = %v, %t", ep, ok)
	}
	if ep, ok := mod.EntryPoint("", binding.StageFragment); !ok || ep.Name != "f" {
		t.Errorf("EntryPoint(fragment) = %v, %t", ep, ok)
	}
	if _, ok := mod.EntryPoint("f", binding.StageVertex); ok {
		t.Error("stage mismatch resolved")
	}
}

func testBGL(t *testing.T, entries ...binding.LayoutEntry) *layout.BindGroupLayout {
	t.Helper()
	l, err := layout.NewBindGroupLayout(&layout.BindGroupLayoutDescriptor{Entries: entries},
		layout.Options{Limits: limits.Default(), AllowInternal: true})
	if err != nil {
		t.Fatalf("NewBindGroupLayout: %v", err)
	}
	return l
}

func testPL(t *testing.T, pls *layout.PixelLocalStorage, immediate uint32, bgls ...*layout.BindGroupLayout) *layout.PipelineLayout {
	t.Helper()
	p, err := layout.NewPipelineLayout(&layout.PipelineLayoutDescriptor{
		BindGroupLayouts:  bgls,
		ImmediateSize:     immediate,
		PixelLocalStorage: pls,
	}, layout.Options{Limits: limits.Default()})
	if err != nil {
		t.Fatalf("NewPipelineLayout: %v", err)
	}
	return p
}

func fragment(bindings ...BindingInfo) *EntryPointMetadata {
	ep := &EntryPointMetadata{Name: "main", Stage: binding.StageFragment}
	for _, b := range bindings {
		ep.AddBinding(0, b)
	}
	return ep
}

func entry(n binding.Number, l binding.Layout) binding.LayoutEntry {
	return binding.LayoutEntry{Binding: n, Visibility: binding.StageFragment, Internal: l}
}

func TestValidateCompatibility(t *testing.T) {
	ubo := binding.BufferLayout{Type: binding.BufferUniform, MinBindingSize: 64}
	tex := binding.TextureLayout{SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimension2D}
	samp := binding.SamplerLayout{Type: binding.SamplerFiltering}
	storageTex := binding.StorageTextureLayout{
		Access:        binding.AccessReadWrite,
		Format:        gputypes.TextureFormatR32Float,
		ViewDimension: gputypes.TextureViewDimension2D,
	}

	tests := []struct {
		name    string
		entries []binding.LayoutEntry
		shader  []BindingInfo
		wantErr string
	}{
		{
			name:    "match",
			entries: []binding.LayoutEntry{entry(0, ubo), entry(1, tex), entry(2, samp)},
			shader: []BindingInfo{
				{Binding: 0, Layout: binding.BufferLayout{Type: binding.BufferUniform, MinBindingSize: 48}},
				{Binding: 1, Layout: tex},
				{Binding: 2, Layout: samp},
			},
		},
		{
			name:    "missing binding",
			entries: []binding.LayoutEntry{entry(0, ubo)},
			shader:  []BindingInfo{{Name: "t", Binding: 3, Layout: tex}},
			wantErr: "group 0 binding 3 (t)",
		},
		{
			name: "visibility",
			entries: []binding.LayoutEntry{{
				Binding: 0, Visibility: binding.StageVertex, Internal: ubo,
			}},
			shader:  []BindingInfo{{Binding: 0, Layout: ubo}},
			wantErr: "does not include the Fragment stage",
		},
		{
			name:    "kind mismatch",
			entries: []binding.LayoutEntry{entry(0, ubo)},
			shader:  []BindingInfo{{Binding: 0, Layout: tex}},
			wantErr: "the shader declares a texture but the layout has a buffer",
		},
		{
			name:    "buffer type",
			entries: []binding.LayoutEntry{entry(0, ubo)},
			shader:  []BindingInfo{{Binding: 0, Layout: binding.BufferLayout{Type: binding.BufferStorage}}},
			wantErr: "buffer type uniform in the layout is not compatible with storage",
		},
		{
			name:    "internal storage promotion",
			entries: []binding.LayoutEntry{entry(0, binding.BufferLayout{Type: binding.BufferInternalStorage})},
			shader:  []BindingInfo{{Binding: 0, Layout: binding.BufferLayout{Type: binding.BufferStorage, MinBindingSize: 1 << 20}}},
		},
		{
			name:    "min binding size",
			entries: []binding.LayoutEntry{entry(0, ubo)},
			shader:  []BindingInfo{{Binding: 0, Layout: binding.BufferLayout{Type: binding.BufferUniform, MinBindingSize: 80}}},
			wantErr: "minimum buffer size (80) required by the shader exceeds the layout minimum binding size (64)",
		},
		{
			name:    "comparison sampler",
			entries: []binding.LayoutEntry{entry(0, samp)},
			shader:  []BindingInfo{{Binding: 0, Layout: binding.SamplerLayout{Type: binding.SamplerComparison}}},
			wantErr: "sampler type filtering in the layout is not compatible with comparison",
		},
		{
			name:    "non-filtering layout accepts plain sampler",
			entries: []binding.LayoutEntry{entry(0, binding.SamplerLayout{Type: binding.SamplerNonFiltering})},
			shader:  []BindingInfo{{Binding: 0, Layout: samp}},
		},
		{
			name:    "texture dimension",
			entries: []binding.LayoutEntry{entry(0, tex)},
			shader: []BindingInfo{{Binding: 0, Layout: binding.TextureLayout{
				SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimensionCube,
			}}},
			wantErr: "layout view dimension 2D does not match the shader view dimension Cube",
		},
		{
			name:    "texture multisampled",
			entries: []binding.LayoutEntry{entry(0, tex)},
			shader: []BindingInfo{{Binding: 0, Layout: binding.TextureLayout{
				SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimension2D, Multisampled: true,
			}}},
			wantErr: "layout multisampled (false) does not match the shader (true)",
		},
		{
			name: "unfilterable layout with float shader",
			entries: []binding.LayoutEntry{entry(0, binding.TextureLayout{
				SampleType: binding.SampleUnfilterableFloat, ViewDimension: gputypes.TextureViewDimension2D,
			})},
			shader: []BindingInfo{{Binding: 0, Layout: tex}},
		},
		{
			name: "depth layout with float shader",
			entries: []binding.LayoutEntry{entry(0, binding.TextureLayout{
				SampleType: binding.SampleDepth, ViewDimension: gputypes.TextureViewDimension2D,
			})},
			shader:  []BindingInfo{{Binding: 0, Layout: tex}},
			wantErr: "layout sample type depth is not compatible with the shader sample type float",
		},
		{
			name:    "uint layout with float shader",
			entries: []binding.LayoutEntry{entry(0, binding.TextureLayout{SampleType: binding.SampleUint, ViewDimension: gputypes.TextureViewDimension2D})},
			shader:  []BindingInfo{{Binding: 0, Layout: tex}},
			wantErr: "layout sample type uint is not compatible",
		},
		{
			name:    "storage read-write layout accepts write-only shader",
			entries: []binding.LayoutEntry{entry(0, storageTex)},
			shader: []BindingInfo{{Binding: 0, Layout: binding.StorageTextureLayout{
				Access: binding.AccessWriteOnly, Format: gputypes.TextureFormatR32Float, ViewDimension: gputypes.TextureViewDimension2D,
			}}},
		},
		{
			name:    "storage access",
			entries: []binding.LayoutEntry{entry(0, storageTex)},
			shader: []BindingInfo{{Binding: 0, Layout: binding.StorageTextureLayout{
				Access: binding.AccessReadOnly, Format: gputypes.TextureFormatR32Float, ViewDimension: gputypes.TextureViewDimension2D,
			}}},
			wantErr: "layout storage access read-write is not compatible with the shader access read-only",
		},
		{
			name:    "storage format",
			entries: []binding.LayoutEntry{entry(0, storageTex)},
			shader: []BindingInfo{{Binding: 0, Layout: binding.StorageTextureLayout{
				Access: binding.AccessReadWrite, Format: gputypes.TextureFormatR32Uint, ViewDimension: gputypes.TextureViewDimension2D,
			}}},
			wantErr: "layout storage format R32Float does not match the shader format R32Uint",
		},
		{
			name: "array size",
			entries: []binding.LayoutEntry{{
				Binding: 0, Visibility: binding.StageFragment, BindingArraySize: 2,
				Texture: &binding.TextureBindingLayout{},
			}},
			shader:  []BindingInfo{{Binding: 0, ArraySize: 3, Layout: tex}},
			wantErr: "shader array size (3) exceeds the layout array size (2)",
		},
		{
			name: "array element",
			entries: []binding.LayoutEntry{{
				Binding: 0, Visibility: binding.StageFragment, BindingArraySize: 2,
				Texture: &binding.TextureBindingLayout{},
			}},
			shader:  []BindingInfo{{Binding: 1, Layout: tex}},
			wantErr: "binding is element 1 of a binding array starting at binding 0",
		},
		{
			name: "external texture",
			entries: []binding.LayoutEntry{{
				Binding: 0, Visibility: binding.StageFragment, ExternalTexture: &binding.ExternalTextureBindingLayout{},
			}},
			shader: []BindingInfo{{Binding: 0, Layout: binding.ExternalTextureLayout{}}},
		},
		{
			name: "external texture kind mismatch",
			entries: []binding.LayoutEntry{{
				Binding: 0, Visibility: binding.StageFragment, ExternalTexture: &binding.ExternalTextureBindingLayout{},
			}},
			shader:  []BindingInfo{{Binding: 0, Layout: tex}},
			wantErr: "the shader declares a texture but the layout has an external texture",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := testPL(t, nil, 0, testBGL(t, tt.entries...))
			err := ValidateCompatibility(pl, fragment(tt.shader...))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), `entry point "main" (Fragment stage)`) {
				t.Errorf("error %q lacks the entry point context", err)
			}
		})
	}
}

func TestValidateCompatibilityMissingGroup(t *testing.T) {
	pl := testPL(t, nil, 0, testBGL(t))
	ep := &EntryPointMetadata{Name: "main", Stage: binding.StageCompute}
	ep.AddBinding(2, BindingInfo{Binding: 0, Layout: binding.BufferLayout{}})
	err := ValidateCompatibility(pl, ep)
	if err == nil || !strings.Contains(err.Error(), "no bind group layout for the group") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateStaticSampler(t *testing.T) {
	linear, err := resource.NewSampler(&resource.SamplerDescriptor{MagFilter: gputypes.FilterModeLinear})
	if err != nil {
		t.Fatal(err)
	}
	static := binding.LayoutEntry{
		Binding: 1, Visibility: binding.StageFragment,
		StaticSampler: &binding.StaticSamplerBindingLayout{Sampler: linear},
	}
	unfilterable := entry(0, binding.TextureLayout{SampleType: binding.SampleUnfilterableFloat, ViewDimension: gputypes.TextureViewDimension2D})
	pl := testPL(t, nil, 0, testBGL(t, unfilterable, static))

	ep := fragment(
		BindingInfo{Binding: 0, Layout: binding.TextureLayout{SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimension2D}},
		BindingInfo{Binding: 1, Layout: binding.SamplerLayout{Type: binding.SamplerFiltering}},
	)
	if err := ValidateCompatibility(pl, ep); err != nil {
		t.Fatalf("unpaired: %v", err)
	}

	ep.SamplerTexturePairs = []SamplerTexturePair{{Sampler: BindingPoint{0, 1}, Texture: BindingPoint{0, 0}}}
	err = ValidateCompatibility(pl, ep)
	if err == nil || !strings.Contains(err.Error(), "sampled by the filtering sampler at group 0 binding 1") {
		t.Errorf("filtering pair err = %v", err)
	}

	ep.AddBinding(0, BindingInfo{Binding: 1, Layout: binding.SamplerLayout{Type: binding.SamplerComparison}})
	ep.SamplerTexturePairs = nil
	err = ValidateCompatibility(pl, ep)
	if err == nil || !strings.Contains(err.Error(), "comparison (false) does not match the shader") {
		t.Errorf("comparison err = %v", err)
	}
}

func TestValidateFilteringPair(t *testing.T) {
	pair := []SamplerTexturePair{{Sampler: BindingPoint{0, 1}, Texture: BindingPoint{0, 0}}}
	tests := []struct {
		name    string
		sample  binding.SampleType
		sampler binding.SamplerType
		wantErr bool
	}{
		{"float filtering", binding.SampleFloat, binding.SamplerFiltering, false},
		{"unfilterable filtering", binding.SampleUnfilterableFloat, binding.SamplerFiltering, true},
		{"unfilterable non-filtering", binding.SampleUnfilterableFloat, binding.SamplerNonFiltering, false},
		{"resolve filtering", binding.SampleInternalResolve, binding.SamplerFiltering, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := testPL(t, nil, 0, testBGL(t,
				entry(0, binding.TextureLayout{SampleType: tt.sample, ViewDimension: gputypes.TextureViewDimension2D}),
				entry(1, binding.SamplerLayout{Type: tt.sampler}),
			))
			ep := fragment(
				BindingInfo{Binding: 0, Layout: binding.TextureLayout{SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimension2D}},
				BindingInfo{Binding: 1, Layout: binding.SamplerLayout{Type: binding.SamplerFiltering}},
			)
			ep.SamplerTexturePairs = pair
			err := ValidateCompatibility(pl, ep)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePixelLocalAndImmediates(t *testing.T) {
	pls := &layout.PixelLocalStorage{
		TotalSize: 8,
		StorageAttachments: []layout.StorageAttachment{
			{Offset: 4, Format: gputypes.TextureFormatR32Float},
		},
	}
	pl := testPL(t, pls, 16)

	ep := &EntryPointMetadata{
		Name: "main", Stage: binding.StageFragment,
		UsesPixelLocal:    true,
		PixelLocalMembers: []format.ComponentType{format.ComponentUint, format.ComponentFloat},
		ImmediateSize:     16,
	}
	if err := ValidateCompatibility(pl, ep); err != nil {
		t.Fatalf("matching block: %v", err)
	}

	ep.PixelLocalMembers = []format.ComponentType{format.ComponentFloat, format.ComponentFloat}
	if err := ValidateCompatibility(pl, ep); err == nil || !strings.Contains(err.Error(), "member 0 has type f32 but its slot has type u32") {
		t.Errorf("member type err = %v", err)
	}

	ep.PixelLocalMembers = []format.ComponentType{format.ComponentUint}
	if err := ValidateCompatibility(pl, ep); err == nil || !strings.Contains(err.Error(), "block size (4) does not match") {
		t.Errorf("size err = %v", err)
	}

	ep.UsesPixelLocal = false
	ep.ImmediateSize = 32
	if err := ValidateCompatibility(pl, ep); err == nil || !strings.Contains(err.Error(), "immediate data size (32) exceeds") {
		t.Errorf("immediate err = %v", err)
	}

	noPLS := testPL(t, nil, 0)
	ep.UsesPixelLocal = true
	ep.ImmediateSize = 0
	if err := ValidateCompatibility(noPLS, ep); err == nil || !strings.Contains(err.Error(), "declares none") {
		t.Errorf("missing pls err = %v", err)
	}
}
