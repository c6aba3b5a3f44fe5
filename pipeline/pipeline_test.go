package pipeline

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/layout"
	"github.com/gogpu/bindcore/limits"
	"github.com/gogpu/bindcore/shader"
)

func testOptions() Options { return Options{Limits: limits.Default()} }

func uniformInfo(n binding.Number, minSize uint64) shader.BindingInfo {
	return shader.BindingInfo{Binding: n, Layout: binding.BufferLayout{Type: binding.BufferUniform, MinBindingSize: minSize}}
}

var (
	floatTexture   = binding.TextureLayout{SampleType: binding.SampleFloat, ViewDimension: gputypes.TextureViewDimension2D}
	filterSampler  = binding.SamplerLayout{Type: binding.SamplerFiltering}
	readOnlyBuffer = binding.BufferLayout{Type: binding.BufferReadOnlyStorage, MinBindingSize: 16}
)

func entryPoint(name string, stage binding.ShaderStage, groups map[binding.GroupIndex][]shader.BindingInfo) *shader.EntryPointMetadata {
	ep := &shader.EntryPointMetadata{Name: name, Stage: stage, Workgroup: [3]uint32{64, 1, 1}}
	for g, bs := range groups {
		for _, b := range bs {
			ep.AddBinding(g, b)
		}
	}
	return ep
}

func module(eps ...*shader.EntryPointMetadata) *shader.Module {
	return &shader.Module{EntryPoints: eps}
}

func mustBGL(t *testing.T, entries ...binding.LayoutEntry) *layout.BindGroupLayout {
	t.Helper()
	l, err := layout.NewBindGroupLayout(&layout.BindGroupLayoutDescriptor{Entries: entries}, layout.Options{Limits: limits.Default()})
	if err != nil {
		t.Fatalf("NewBindGroupLayout: %v", err)
	}
	return l
}

func mustPL(t *testing.T, bgls ...*layout.BindGroupLayout) *layout.PipelineLayout {
	t.Helper()
	p, err := layout.NewPipelineLayout(&layout.PipelineLayoutDescriptor{BindGroupLayouts: bgls}, layout.Options{Limits: limits.Default()})
	if err != nil {
		t.Fatalf("NewPipelineLayout: %v", err)
	}
	return p
}

func TestDefaultLayoutInference(t *testing.T) {
	vs := entryPoint("vs", binding.StageVertex, map[binding.GroupIndex][]shader.BindingInfo{
		0: {uniformInfo(0, 64)},
	})
	fs := entryPoint("fs", binding.StageFragment, map[binding.GroupIndex][]shader.BindingInfo{
		0: {uniformInfo(0, 128), {Binding: 1, Layout: floatTexture}, {Binding: 2, Layout: filterSampler}},
		2: {{Binding: 0, Layout: readOnlyBuffer}},
	})
	mod := module(vs, fs)

	p, err := NewRenderPipeline(&RenderPipelineDescriptor{
		Vertex:   VertexState{ProgrammableStage: ProgrammableStage{Module: mod}},
		Fragment: &FragmentState{ProgrammableStage{Module: mod}},
	}, testOptions())
	if err != nil {
		t.Fatalf("NewRenderPipeline: %v", err)
	}
	pl := p.Layout()
	if got := pl.UsedGroups().Word(); got != 0b101 {
		t.Errorf("used groups = %b, want 101", got)
	}
	if p.Stages() != binding.StageVertex|binding.StageFragment {
		t.Errorf("stages = %s", p.Stages())
	}

	bgl0, err := p.BindGroupLayout(0)
	if err != nil {
		t.Fatal(err)
	}
	if bgl0.BindingCount() != 3 {
		t.Fatalf("group 0 binding count = %d, want 3", bgl0.BindingCount())
	}
	idx, _ := bgl0.BindingIndex(0)
	info := bgl0.Binding(idx)
	if info.Visibility != binding.StageVertex|binding.StageFragment {
		t.Errorf("merged visibility = %s", info.Visibility)
	}
	if b, _ := info.Buffer(); b.MinBindingSize != 128 {
		t.Errorf("merged min binding size = %d, want 128", b.MinBindingSize)
	}
	if _, err := p.BindGroupLayout(1); err == nil {
		t.Error("group 1 should have no layout")
	}
	if _, err := p.BindGroupLayout(binding.MaxBindGroups); err == nil {
		t.Error("out of range group accepted")
	}

	if p.EntryPoint(binding.StageFragment) != fs || p.EntryPoint(binding.StageCompute) != nil {
		t.Error("EntryPoint lookup mismatch")
	}
	if got := pl.Refs(); got != 1 {
		t.Errorf("default layout refs = %d, want 1", got)
	}
	if got := bgl0.Refs(); got != 1 {
		t.Errorf("default bind group layout refs = %d, want 1", got)
	}
	p.Release()
	if pl.Alive() || bgl0.Alive() {
		t.Error("default layouts outlived the pipeline")
	}
}

func TestDefaultLayoutConflicts(t *testing.T) {
	tests := []struct {
		name    string
		vs, fs  shader.BindingInfo
		wantErr string
	}{
		{
			name:    "kind",
			vs:      uniformInfo(0, 16),
			fs:      shader.BindingInfo{Binding: 0, Layout: floatTexture},
			wantErr: "different kinds of resources",
		},
		{
			name:    "buffer type",
			vs:      uniformInfo(0, 16),
			fs:      shader.BindingInfo{Binding: 0, Layout: readOnlyBuffer},
			wantErr: "conflicting buffer types",
		},
		{
			name:    "sampler type",
			vs:      shader.BindingInfo{Binding: 0, Layout: filterSampler},
			fs:      shader.BindingInfo{Binding: 0, Layout: binding.SamplerLayout{Type: binding.SamplerComparison}},
			wantErr: "conflicting sampler types",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := module(
				entryPoint("vs", binding.StageVertex, map[binding.GroupIndex][]shader.BindingInfo{0: {tt.vs}}),
				entryPoint("fs", binding.StageFragment, map[binding.GroupIndex][]shader.BindingInfo{0: {tt.fs}}),
			)
			_, err := NewRenderPipeline(&RenderPipelineDescriptor{
				Label:    "rp",
				Vertex:   VertexState{ProgrammableStage: ProgrammableStage{Module: mod}},
				Fragment: &FragmentState{ProgrammableStage{Module: mod}},
			}, testOptions())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), `validating [RenderPipeline "rp"]`) ||
				!strings.Contains(err.Error(), "inferring the default pipeline layout") {
				t.Errorf("err %q lacks context", err)
			}
		})
	}
}

func TestDefaultLayoutPixelLocal(t *testing.T) {
	fs := entryPoint("fs", binding.StageFragment, nil)
	fs.UsesPixelLocal = true
	vs := entryPoint("vs", binding.StageVertex, nil)
	mod := module(vs, fs)
	_, err := NewRenderPipeline(&RenderPipelineDescriptor{
		Vertex:   VertexState{ProgrammableStage: ProgrammableStage{Module: mod}},
		Fragment: &FragmentState{ProgrammableStage{Module: mod}},
	}, testOptions())
	if err == nil || !strings.Contains(err.Error(), "requires an explicit pipeline layout") {
		t.Errorf("err = %v", err)
	}
}

func TestMinBufferSizes(t *testing.T) {
	bgl := mustBGL(t,
		binding.LayoutEntry{Binding: 0, Visibility: binding.StageVertex | binding.StageFragment,
			Buffer: &binding.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		binding.LayoutEntry{Binding: 1, Visibility: binding.StageFragment,
			Buffer: &binding.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: 32}},
		binding.LayoutEntry{Binding: 2, Visibility: binding.StageFragment,
			Buffer: &binding.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
	)
	pl := mustPL(t, bgl)

	mod := module(
		entryPoint("vs", binding.StageVertex, map[binding.GroupIndex][]shader.BindingInfo{0: {uniformInfo(0, 256)}}),
		entryPoint("fs", binding.StageFragment, map[binding.GroupIndex][]shader.BindingInfo{
			0: {uniformInfo(0, 128), uniformInfo(1, 32)},
		}),
	)
	p, err := NewRenderPipeline(&RenderPipelineDescriptor{
		Layout:   pl,
		Vertex:   VertexState{ProgrammableStage: ProgrammableStage{Module: mod}},
		Fragment: &FragmentState{ProgrammableStage{Module: mod}},
	}, testOptions())
	if err != nil {
		t.Fatalf("NewRenderPipeline: %v", err)
	}

	// Unverified buffers of the layout: binding 0 and binding 2. No stage
	// uses binding 2.
	sizes := p.MinBufferSizes(0)
	if len(sizes) != int(bgl.UnverifiedBufferCount()) || len(sizes) != 2 {
		t.Fatalf("sizes = %v", sizes)
	}
	for j, s := range sizes {
		n := bgl.Binding(bgl.UnverifiedBufferIndex(uint32(j))).Binding
		want := map[binding.Number]uint64{0: 256, 2: 0}[n]
		if s != want {
			t.Errorf("binding %d min size = %d, want %d", n, s, want)
		}
	}
	if p.MinBufferSizes(1) != nil || p.MinBufferSizes(binding.MaxBindGroups) != nil {
		t.Error("unused groups have min sizes")
	}

	if got := pl.Refs(); got != 2 {
		t.Errorf("explicit layout refs = %d, want 2", got)
	}
	p.Release()
	if got := pl.Refs(); got != 1 {
		t.Errorf("explicit layout refs after release = %d, want 1", got)
	}
}

func TestExplicitLayoutMismatch(t *testing.T) {
	pl := mustPL(t, mustBGL(t, binding.LayoutEntry{
		Binding: 0, Visibility: binding.StageCompute,
		Buffer: &binding.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: 16},
	}))
	mod := module(entryPoint("main", binding.StageCompute, map[binding.GroupIndex][]shader.BindingInfo{
		0: {uniformInfo(0, 64)},
	}))
	_, err := NewComputePipeline(&ComputePipelineDescriptor{
		Label:   "cp",
		Layout:  pl,
		Compute: ProgrammableStage{Module: mod},
	}, testOptions())
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{`validating [ComputePipeline "cp"]`, `entry point "main"`, "exceeds the layout minimum binding size (16)"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err %q does not contain %q", err, want)
		}
	}
	if got := pl.Refs(); got != 1 {
		t.Errorf("layout refs after failed creation = %d, want 1", got)
	}
}

func TestEntryPointResolution(t *testing.T) {
	id := uint16(7)
	mod := module(
		entryPoint("a", binding.StageCompute, nil),
		entryPoint("b", binding.StageCompute, nil),
	)
	mod.Overrides = []shader.Override{{Name: "scale"}, {Name: "bias", ID: &id}}

	tests := []struct {
		name    string
		stage   ProgrammableStage
		wantErr string
	}{
		{"named", ProgrammableStage{Module: mod, EntryPoint: "a"}, ""},
		{"ambiguous", ProgrammableStage{Module: mod}, "does not have exactly one Compute entry point"},
		{"unknown", ProgrammableStage{Module: mod, EntryPoint: "c"}, `no Compute entry point named "c"`},
		{"no module", ProgrammableStage{}, "has no shader module"},
		{"constant by name", ProgrammableStage{Module: mod, EntryPoint: "a", Constants: map[string]float64{"scale": 2}}, ""},
		{"constant by id", ProgrammableStage{Module: mod, EntryPoint: "a", Constants: map[string]float64{"7": 1}}, ""},
		{"unknown constant", ProgrammableStage{Module: mod, EntryPoint: "a", Constants: map[string]float64{"8": 1}}, `pipeline constant "8"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewComputePipeline(&ComputePipelineDescriptor{Compute: tt.stage}, testOptions())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.WorkgroupSize() != [3]uint32{64, 1, 1} {
					t.Errorf("workgroup = %v", p.WorkgroupSize())
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestVertexState(t *testing.T) {
	mod := module(entryPoint("vs", binding.StageVertex, nil))
	attr := func(f gputypes.VertexFormat, offset uint64, loc uint32) gputypes.VertexAttribute {
		return gputypes.VertexAttribute{Format: f, Offset: offset, ShaderLocation: loc}
	}

	tests := []struct {
		name    string
		buffers []gputypes.VertexBufferLayout
		wantErr string
	}{
		{
			name: "valid",
			buffers: []gputypes.VertexBufferLayout{
				{ArrayStride: 20, Attributes: []gputypes.VertexAttribute{
					attr(gputypes.VertexFormatFloat32x3, 0, 0), attr(gputypes.VertexFormatFloat32x2, 12, 1),
				}},
				{StepMode: gputypes.VertexStepModeVertexBufferNotUsed},
				{ArrayStride: 0, StepMode: gputypes.VertexStepModeInstance, Attributes: []gputypes.VertexAttribute{
					attr(gputypes.VertexFormatUint32, 4, 2),
				}},
			},
		},
		{
			name:    "stride alignment",
			buffers: []gputypes.VertexBufferLayout{{ArrayStride: 6}},
			wantErr: "arrayStride (6) is not a multiple of 4",
		},
		{
			name:    "stride limit",
			buffers: []gputypes.VertexBufferLayout{{ArrayStride: 4096}},
			wantErr: "exceeds the maximum array stride (2048)",
		},
		{
			name: "attribute past stride",
			buffers: []gputypes.VertexBufferLayout{{ArrayStride: 8, Attributes: []gputypes.VertexAttribute{
				attr(gputypes.VertexFormatFloat32x2, 4, 0),
			}}},
			wantErr: "range [4, 12) does not fit in the array stride (8)",
		},
		{
			name: "attribute alignment",
			buffers: []gputypes.VertexBufferLayout{{ArrayStride: 16, Attributes: []gputypes.VertexAttribute{
				attr(gputypes.VertexFormatFloat32, 2, 0),
			}}},
			wantErr: "offset (2) is not a multiple of 4",
		},
		{
			name: "duplicate location",
			buffers: []gputypes.VertexBufferLayout{
				{ArrayStride: 4, Attributes: []gputypes.VertexAttribute{attr(gputypes.VertexFormatFloat32, 0, 3)}},
				{ArrayStride: 4, Attributes: []gputypes.VertexAttribute{attr(gputypes.VertexFormatFloat32, 0, 3)}},
			},
			wantErr: "shader location 3 is used more than once",
		},
		{
			name: "unused buffer with attributes",
			buffers: []gputypes.VertexBufferLayout{{
				StepMode:   gputypes.VertexStepModeVertexBufferNotUsed,
				Attributes: []gputypes.VertexAttribute{attr(gputypes.VertexFormatFloat32, 0, 0)},
			}},
			wantErr: "is not used but has 1 attributes",
		},
		{
			name:    "too many buffers",
			buffers: make([]gputypes.VertexBufferLayout, 9),
			wantErr: "vertex buffer count (9) exceeds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRenderPipeline(&RenderPipelineDescriptor{
				Vertex: VertexState{ProgrammableStage: ProgrammableStage{Module: mod}, Buffers: tt.buffers},
			}, testOptions())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.VertexBuffersUsed().Word(); got != 0b101 {
				t.Errorf("used slots = %b, want 101", got)
			}
			if got := p.VertexBuffersUsedAsInstance().Word(); got != 0b100 {
				t.Errorf("instance slots = %b, want 100", got)
			}
			want := VertexBufferInfo{ArrayStride: 20, StepMode: gputypes.VertexStepModeVertex, LastStride: 20}
			if got := p.VertexBuffer(0); got != want {
				t.Errorf("slot 0 = %+v, want %+v", got, want)
			}
			if got := p.VertexBuffer(2).LastStride; got != 8 {
				t.Errorf("slot 2 last stride = %d, want 8", got)
			}
			if got := p.VertexBuffer(1); got != (VertexBufferInfo{}) {
				t.Errorf("unused slot = %+v", got)
			}
		})
	}
}

func TestVertexBuffersWithoutAttributes(t *testing.T) {
	mod := module(entryPoint("vs", binding.StageVertex, nil))
	p, err := NewRenderPipeline(&RenderPipelineDescriptor{
		Vertex: VertexState{ProgrammableStage: ProgrammableStage{Module: mod}, Buffers: []gputypes.VertexBufferLayout{
			{ArrayStride: 16, StepMode: gputypes.VertexStepModeVertex},
			{},
			{ArrayStride: 4, StepMode: gputypes.VertexStepModeInstance},
			{StepMode: gputypes.VertexStepModeVertexBufferNotUsed},
		}},
	}, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.VertexBuffersUsed().Word(); got != 0b101 {
		t.Errorf("used slots = %b, want 101", got)
	}
	if got := p.VertexBuffersUsedAsInstance().Word(); got != 0b100 {
		t.Errorf("instance slots = %b, want 100", got)
	}
	want := VertexBufferInfo{ArrayStride: 16, StepMode: gputypes.VertexStepModeVertex}
	if got := p.VertexBuffer(0); got != want {
		t.Errorf("slot 0 = %+v, want %+v", got, want)
	}
	if got := p.VertexBuffer(2).LastStride; got != 0 {
		t.Errorf("slot 2 last stride = %d, want 0", got)
	}
}

func TestPrimitiveState(t *testing.T) {
	mod := module(entryPoint("vs", binding.StageVertex, nil))
	tests := []struct {
		name    string
		state   PrimitiveState
		strip   bool
		wantErr string
	}{
		{name: "default", state: PrimitiveState{}},
		{name: "strip with format", state: PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip, StripIndexFormat: gputypes.IndexFormatUint16,
		}, strip: true},
		{name: "strip without format", state: PrimitiveState{Topology: gputypes.PrimitiveTopologyLineStrip}, strip: true},
		{name: "list with format", state: PrimitiveState{
			Topology: gputypes.PrimitiveTopologyLineList, StripIndexFormat: gputypes.IndexFormatUint32,
		}, wantErr: "is set for the non-strip topology"},
		{name: "bad topology", state: PrimitiveState{Topology: 42}, wantErr: "primitive topology (42) is invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRenderPipeline(&RenderPipelineDescriptor{
				Vertex:    VertexState{ProgrammableStage: ProgrammableStage{Module: mod}},
				Primitive: tt.state,
			}, testOptions())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.IsStripTopology() != tt.strip || p.StripIndexFormat() != tt.state.StripIndexFormat {
				t.Errorf("strip = %t format = %s", p.IsStripTopology(), p.StripIndexFormat())
			}
		})
	}
}

func TestComputeFromWGSL(t *testing.T) {
	mod, err := shader.ParseWGSL(`
struct Data {
    values: array<u32>,
}

@group(0) @binding(0) var<storage, read_write> data: Data;

@compute @workgroup_size(8, 4, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data.values[id.x] = id.x;
}
`)
	if err != nil {
		t.Fatalf("ParseWGSL: %v", err)
	}
	p, err := NewComputePipeline(&ComputePipelineDescriptor{Compute: ProgrammableStage{Module: mod}}, testOptions())
	if err != nil {
		t.Fatalf("NewComputePipeline: %v", err)
	}
	if p.WorkgroupSize() != [3]uint32{8, 4, 1} {
		t.Errorf("workgroup = %v", p.WorkgroupSize())
	}
	bgl, err := p.BindGroupLayout(0)
	if err != nil {
		t.Fatal(err)
	}
	b, ok := bgl.Binding(0).Buffer()
	if !ok || b.Type != binding.BufferStorage || b.MinBindingSize == 0 {
		t.Errorf("inferred buffer = %+v", bgl.Binding(0).Layout)
	}
}
