package shader

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/internal/logging"
)

// ParseWGSL compiles WGSL source with naga and reflects every entry point.
// Only the resources an entry point statically uses, directly or through
// called functions, appear in its metadata.
func ParseWGSL(source string) (*Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	mod, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	return Reflect(mod)
}

// Reflect builds metadata from a lowered naga module.
func Reflect(mod *ir.Module) (*Module, error) {
	r := &reflector{mod: mod}
	out := &Module{}
	for _, o := range mod.Overrides {
		out.Overrides = append(out.Overrides, Override{Name: o.Name, ID: o.ID})
	}
	for i := range mod.EntryPoints {
		ep, err := r.entryPoint(&mod.EntryPoints[i])
		if err != nil {
			return nil, fmt.Errorf("shader: entry point %q: %w", mod.EntryPoints[i].Name, err)
		}
		ep.Overrides = out.Overrides
		out.EntryPoints = append(out.EntryPoints, ep)
	}
	logging.Logger().Debug("shader: reflected module", "entryPoints", len(out.EntryPoints), "overrides", len(out.Overrides))
	return out, nil
}

type reflector struct {
	mod *ir.Module
}

func (r *reflector) entryPoint(ep *ir.EntryPoint) (*EntryPointMetadata, error) {
	stage, err := convertStage(ep.Stage)
	if err != nil {
		return nil, err
	}
	m := &EntryPointMetadata{Name: ep.Name, Stage: stage, Workgroup: ep.Workgroup}

	u := usage{globals: map[ir.GlobalVariableHandle]bool{}, visited: map[ir.FunctionHandle]bool{}}
	u.walkFunction(r.mod, &ep.Function)

	for h := range u.globals {
		gv := &r.mod.GlobalVariables[h]
		switch gv.Space {
		case ir.SpacePushConstant, ir.SpaceImmediate:
			m.ImmediateSize = max(m.ImmediateSize, ir.TypeSize(r.mod, gv.Type))
			continue
		}
		if gv.Binding == nil {
			continue
		}
		if gv.Binding.Group >= binding.MaxBindGroups {
			return nil, fmt.Errorf("%s uses group %d, above the maximum of %d", gv.Name, gv.Binding.Group, binding.MaxBindGroups-1)
		}
		info, err := r.bindingInfo(gv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", gv.Name, err)
		}
		m.AddBinding(binding.GroupIndex(gv.Binding.Group), info)
	}

	for _, p := range u.pairs {
		s, t := &r.mod.GlobalVariables[p[0]], &r.mod.GlobalVariables[p[1]]
		if s.Binding == nil || t.Binding == nil {
			continue
		}
		m.SamplerTexturePairs = append(m.SamplerTexturePairs, SamplerTexturePair{
			Sampler: BindingPoint{Group: binding.GroupIndex(s.Binding.Group), Binding: binding.Number(s.Binding.Binding)},
			Texture: BindingPoint{Group: binding.GroupIndex(t.Binding.Group), Binding: binding.Number(t.Binding.Binding)},
		})
	}

	r.builtins(ep, m)
	return m, nil
}

func convertStage(s ir.ShaderStage) (binding.ShaderStage, error) {
	switch s {
	case ir.StageVertex:
		return binding.StageVertex, nil
	case ir.StageFragment:
		return binding.StageFragment, nil
	case ir.StageCompute:
		return binding.StageCompute, nil
	}
	return binding.StageNone, fmt.Errorf("unsupported shader stage %d", s)
}

func (r *reflector) bindingInfo(gv *ir.GlobalVariable) (BindingInfo, error) {
	info := BindingInfo{Name: gv.Name, Binding: binding.Number(gv.Binding.Binding), ArraySize: 1}
	inner := r.mod.Types[gv.Type].Inner

	switch gv.Space {
	case ir.SpaceUniform:
		info.Layout = binding.BufferLayout{Type: binding.BufferUniform, MinBindingSize: r.minBufferSize(gv.Type)}
		return info, nil
	case ir.SpaceStorage:
		t := binding.BufferStorage
		if gv.Access == ir.StorageRead {
			t = binding.BufferReadOnlyStorage
		}
		info.Layout = binding.BufferLayout{Type: t, MinBindingSize: r.minBufferSize(gv.Type)}
		return info, nil
	case ir.SpaceHandle:
	default:
		return info, fmt.Errorf("unsupported address space %d for a resource binding", gv.Space)
	}

	if arr, ok := inner.(ir.BindingArrayType); ok {
		if arr.Size == nil {
			return info, fmt.Errorf("runtime-sized binding arrays are not supported")
		}
		info.ArraySize = *arr.Size
		inner = r.mod.Types[arr.Base].Inner
	}

	switch t := inner.(type) {
	case ir.SamplerType:
		st := binding.SamplerFiltering
		if t.Comparison {
			st = binding.SamplerComparison
		}
		info.Layout = binding.SamplerLayout{Type: st}
	case ir.ImageType:
		l, err := imageLayout(t)
		if err != nil {
			return info, err
		}
		info.Layout = l
	default:
		return info, fmt.Errorf("unsupported handle type %T", inner)
	}
	return info, nil
}

// minBufferSize is the smallest buffer range a variable of type h fits in.
// Runtime-sized arrays count one element.
func (r *reflector) minBufferSize(h ir.TypeHandle) uint64 {
	size := uint64(ir.TypeSize(r.mod, h))
	if st, ok := r.mod.Types[h].Inner.(ir.StructType); ok && len(st.Members) > 0 {
		last := st.Members[len(st.Members)-1]
		if arr, ok := r.mod.Types[last.Type].Inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
			size = max(size, uint64(last.Offset)+uint64(arr.Stride))
		}
	}
	return size
}

func imageLayout(t ir.ImageType) (binding.Layout, error) {
	dim, err := viewDimension(t.Dim, t.Arrayed)
	if err != nil {
		return nil, err
	}
	switch t.Class {
	case ir.ImageClassSampled:
		var st binding.SampleType
		switch t.SampledKind {
		case ir.ScalarFloat:
			st = binding.SampleFloat
		case ir.ScalarSint:
			st = binding.SampleSint
		case ir.ScalarUint:
			st = binding.SampleUint
		default:
			return nil, fmt.Errorf("unsupported sampled kind %d", t.SampledKind)
		}
		return binding.TextureLayout{SampleType: st, ViewDimension: dim, Multisampled: t.Multisampled}, nil
	case ir.ImageClassDepth:
		return binding.TextureLayout{SampleType: binding.SampleDepth, ViewDimension: dim, Multisampled: t.Multisampled}, nil
	case ir.ImageClassStorage:
		f, ok := storageFormats[t.StorageFormat]
		if !ok {
			return nil, fmt.Errorf("unsupported storage format %d", t.StorageFormat)
		}
		var access binding.StorageAccess
		switch t.StorageAccess {
		case ir.StorageAccessRead:
			access = binding.AccessReadOnly
		case ir.StorageAccessWrite:
			access = binding.AccessWriteOnly
		case ir.StorageAccessReadWrite:
			access = binding.AccessReadWrite
		default:
			return nil, fmt.Errorf("unsupported storage access %d", t.StorageAccess)
		}
		return binding.StorageTextureLayout{Access: access, Format: f, ViewDimension: dim}, nil
	case ir.ImageClassExternal:
		return binding.ExternalTextureLayout{}, nil
	}
	return nil, fmt.Errorf("unsupported image class %d", t.Class)
}

func viewDimension(d ir.ImageDimension, arrayed bool) (gputypes.TextureViewDimension, error) {
	switch {
	case d == ir.Dim1D && !arrayed:
		return gputypes.TextureViewDimension1D, nil
	case d == ir.Dim2D && !arrayed:
		return gputypes.TextureViewDimension2D, nil
	case d == ir.Dim2D:
		return gputypes.TextureViewDimension2DArray, nil
	case d == ir.Dim3D && !arrayed:
		return gputypes.TextureViewDimension3D, nil
	case d == ir.DimCube && !arrayed:
		return gputypes.TextureViewDimensionCube, nil
	case d == ir.DimCube:
		return gputypes.TextureViewDimensionCubeArray, nil
	}
	return 0, fmt.Errorf("unsupported image dimension %d (arrayed: %t)", d, arrayed)
}

var storageFormats = map[ir.StorageFormat]gputypes.TextureFormat{
	ir.StorageFormatR32Float:    gputypes.TextureFormatR32Float,
	ir.StorageFormatR32Uint:     gputypes.TextureFormatR32Uint,
	ir.StorageFormatR32Sint:     gputypes.TextureFormatR32Sint,
	ir.StorageFormatRgba8Unorm:  gputypes.TextureFormatRGBA8Unorm,
	ir.StorageFormatRgba8Uint:   gputypes.TextureFormatRGBA8Uint,
	ir.StorageFormatRgba8Sint:   gputypes.TextureFormatRGBA8Sint,
	ir.StorageFormatBgra8Unorm:  gputypes.TextureFormatBGRA8Unorm,
	ir.StorageFormatRg32Float:   gputypes.TextureFormatRG32Float,
	ir.StorageFormatRgba16Float: gputypes.TextureFormatRGBA16Float,
	ir.StorageFormatRgba32Float: gputypes.TextureFormatRGBA32Float,
	ir.StorageFormatRgba32Uint:  gputypes.TextureFormatRGBA32Uint,
}

// builtins records the builtin inputs and outputs of the entry point.
func (r *reflector) builtins(ep *ir.EntryPoint, m *EntryPointMetadata) {
	visit := func(b *ir.Binding, ty ir.TypeHandle) {
		for _, v := range r.builtinValues(b, ty) {
			switch v {
			case ir.BuiltinVertexIndex:
				m.UsesVertexIndex = true
			case ir.BuiltinInstanceIndex:
				m.UsesInstanceIndex = true
			case ir.BuiltinFragDepth:
				m.UsesFragDepth = true
			case ir.BuiltinSampleMask:
				m.UsesSampleMask = true
			}
		}
	}
	for _, arg := range ep.Function.Arguments {
		visit(arg.Binding, arg.Type)
	}
	if res := ep.Function.Result; res != nil {
		visit(res.Binding, res.Type)
	}
}

func (r *reflector) builtinValues(b *ir.Binding, ty ir.TypeHandle) []ir.BuiltinValue {
	if b != nil {
		if bb, ok := (*b).(ir.BuiltinBinding); ok {
			return []ir.BuiltinValue{bb.Builtin}
		}
		return nil
	}
	st, ok := r.mod.Types[ty].Inner.(ir.StructType)
	if !ok {
		return nil
	}
	var out []ir.BuiltinValue
	for _, mem := range st.Members {
		if mem.Binding == nil {
			continue
		}
		if bb, ok := (*mem.Binding).(ir.BuiltinBinding); ok {
			out = append(out, bb.Builtin)
		}
	}
	return out
}

// usage collects the globals and sampler/texture pairs reachable from a
// function.
type usage struct {
	globals map[ir.GlobalVariableHandle]bool
	pairs   [][2]ir.GlobalVariableHandle
	visited map[ir.FunctionHandle]bool
}

func (u *usage) walkFunction(mod *ir.Module, fn *ir.Function) {
	for _, e := range fn.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprGlobalVariable:
			u.globals[k.Variable] = true
		case ir.ExprImageSample:
			s, sok := rootGlobal(fn, k.Sampler)
			t, tok := rootGlobal(fn, k.Image)
			if sok && tok {
				u.addPair(s, t)
			}
		}
	}
	u.walkBlock(mod, fn.Body)
}

func (u *usage) addPair(s, t ir.GlobalVariableHandle) {
	for _, p := range u.pairs {
		if p[0] == s && p[1] == t {
			return
		}
	}
	u.pairs = append(u.pairs, [2]ir.GlobalVariableHandle{s, t})
}

func (u *usage) walkBlock(mod *ir.Module, b ir.Block) {
	for _, st := range b {
		switch k := st.Kind.(type) {
		case ir.StmtCall:
			if u.visited[k.Function] || int(k.Function) >= len(mod.Functions) {
				continue
			}
			u.visited[k.Function] = true
			u.walkFunction(mod, &mod.Functions[k.Function])
		case ir.StmtBlock:
			u.walkBlock(mod, k.Block)
		case ir.StmtIf:
			u.walkBlock(mod, k.Accept)
			u.walkBlock(mod, k.Reject)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				u.walkBlock(mod, c.Body)
			}
		case ir.StmtLoop:
			u.walkBlock(mod, k.Body)
			u.walkBlock(mod, k.Continuing)
		}
	}
}

// rootGlobal follows loads and array accesses from h back to a global variable.
func rootGlobal(fn *ir.Function, h ir.ExpressionHandle) (ir.GlobalVariableHandle, bool) {
	for int(h) < len(fn.Expressions) {
		switch k := fn.Expressions[h].Kind.(type) {
		case ir.ExprGlobalVariable:
			return k.Variable, true
		case ir.ExprAccess:
			h = k.Base
		case ir.ExprAccessIndex:
			h = k.Base
		case ir.ExprLoad:
			h = k.Pointer
		default:
			return 0, false
		}
	}
	return 0, false
}
