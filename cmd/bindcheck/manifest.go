package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/bindcore/binding"
	"github.com/gogpu/bindcore/format"
	"github.com/gogpu/bindcore/layout"
)

// Manifest is the TOML description of a pipeline layout and the shader it
// is checked against.
//
//	shader = "blur.wgsl"
//	immediate_size = 16
//
//	[[groups]]
//	group = 0
//
//	  [[groups.entries]]
//	  binding = 0
//	  visibility = ["compute"]
//	  buffer = "uniform"
//	  min_binding_size = 16
type Manifest struct {
	Shader        string  `toml:"shader"`
	Label         string  `toml:"label"`
	ImmediateSize uint32  `toml:"immediate_size"`
	Groups        []Group `toml:"groups"`

	// dir is the directory relative paths resolve against.
	dir string
}

// Group is one bind group layout of the manifest.
type Group struct {
	Group   uint32  `toml:"group"`
	Label   string  `toml:"label"`
	Entries []Entry `toml:"entries"`
}

// Entry is one bind group layout entry. Exactly one of Buffer, Sampler,
// Texture, StorageTexture and ExternalTexture must be set.
type Entry struct {
	Binding    uint32   `toml:"binding"`
	Visibility []string `toml:"visibility"`
	ArraySize  uint32   `toml:"array_size"`

	Buffer           string `toml:"buffer"`
	HasDynamicOffset bool   `toml:"has_dynamic_offset"`
	MinBindingSize   uint64 `toml:"min_binding_size"`

	Sampler string `toml:"sampler"`

	Texture       string `toml:"texture"`
	ViewDimension string `toml:"view_dimension"`
	Multisampled  bool   `toml:"multisampled"`

	StorageTexture string `toml:"storage_texture"`
	Format         string `toml:"format"`

	ExternalTexture bool `toml:"external_texture"`
}

// LoadManifest reads and decodes the manifest at path. Unknown keys are
// errors.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return nil, fmt.Errorf("%s:%d:%d: %s", path, row, col, de.Error())
		}
		var se *toml.StrictMissingError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%s: %s", path, strings.TrimSpace(se.String()))
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Shader == "" {
		return nil, fmt.Errorf("%s: no shader given", path)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// ShaderPath returns the shader path resolved against the manifest.
func (m *Manifest) ShaderPath() string {
	if filepath.IsAbs(m.Shader) {
		return m.Shader
	}
	return filepath.Join(m.dir, m.Shader)
}

// Descriptors converts the groups into bind group layout descriptors
// indexed by group. Groups the manifest does not name are nil.
func (m *Manifest) Descriptors() ([]*layout.BindGroupLayoutDescriptor, error) {
	var out []*layout.BindGroupLayoutDescriptor
	for _, g := range m.Groups {
		if g.Group >= binding.MaxBindGroups {
			return nil, fmt.Errorf("group %d exceeds the maximum of %d groups", g.Group, binding.MaxBindGroups)
		}
		if int(g.Group) < len(out) && out[g.Group] != nil {
			return nil, fmt.Errorf("group %d declared twice", g.Group)
		}
		desc := &layout.BindGroupLayoutDescriptor{Label: g.Label}
		for i, e := range g.Entries {
			le, err := e.layoutEntry()
			if err != nil {
				return nil, fmt.Errorf("group %d entry %d (binding %d): %w", g.Group, i, e.Binding, err)
			}
			desc.Entries = append(desc.Entries, le)
		}
		for len(out) <= int(g.Group) {
			out = append(out, nil)
		}
		out[g.Group] = desc
	}
	return out, nil
}

func (e *Entry) layoutEntry() (binding.LayoutEntry, error) {
	le := binding.LayoutEntry{Binding: binding.Number(e.Binding), BindingArraySize: e.ArraySize}
	for _, s := range e.Visibility {
		st, ok := stages[strings.ToLower(s)]
		if !ok {
			return le, fmt.Errorf("unknown stage %q", s)
		}
		le.Visibility |= st
	}

	set := 0
	if e.Buffer != "" {
		set++
		t, err := lookup(bufferTypes, "buffer type", e.Buffer)
		if err != nil {
			return le, err
		}
		le.Buffer = &binding.BufferBindingLayout{Type: t, HasDynamicOffset: e.HasDynamicOffset, MinBindingSize: e.MinBindingSize}
	}
	if e.Sampler != "" {
		set++
		t, err := lookup(samplerTypes, "sampler type", e.Sampler)
		if err != nil {
			return le, err
		}
		le.Sampler = &binding.SamplerBindingLayout{Type: t}
	}
	if e.Texture != "" {
		set++
		t, err := lookup(sampleTypes, "sample type", e.Texture)
		if err != nil {
			return le, err
		}
		dim, err := e.viewDimension()
		if err != nil {
			return le, err
		}
		le.Texture = &binding.TextureBindingLayout{SampleType: t, ViewDimension: dim, Multisampled: e.Multisampled}
	}
	if e.StorageTexture != "" {
		set++
		access, err := lookup(accessModes, "storage access", e.StorageTexture)
		if err != nil {
			return le, err
		}
		f, ok := format.ByName(e.Format)
		if !ok {
			return le, fmt.Errorf("unknown texture format %q", e.Format)
		}
		dim, err := e.viewDimension()
		if err != nil {
			return le, err
		}
		le.StorageTexture = &binding.StorageTextureBindingLayout{Access: access, Format: f, ViewDimension: dim}
	}
	if e.ExternalTexture {
		set++
		le.ExternalTexture = &binding.ExternalTextureBindingLayout{}
	}
	if set != 1 {
		return le, fmt.Errorf("exactly one of buffer, sampler, texture, storage_texture and external_texture must be set, found %d", set)
	}
	return le, nil
}

func (e *Entry) viewDimension() (gputypes.TextureViewDimension, error) {
	if e.ViewDimension == "" {
		return gputypes.TextureViewDimension2D, nil
	}
	return lookup(viewDimensions, "view dimension", e.ViewDimension)
}

func lookup[T any](table map[string]T, what, name string) (T, error) {
	v, ok := table[strings.ToLower(name)]
	if !ok {
		return v, fmt.Errorf("unknown %s %q", what, name)
	}
	return v, nil
}

var stages = map[string]binding.ShaderStage{
	"vertex":   binding.StageVertex,
	"fragment": binding.StageFragment,
	"compute":  binding.StageCompute,
}

var bufferTypes = map[string]gputypes.BufferBindingType{
	"uniform":           gputypes.BufferBindingTypeUniform,
	"storage":           gputypes.BufferBindingTypeStorage,
	"read-only-storage": gputypes.BufferBindingTypeReadOnlyStorage,
}

var samplerTypes = map[string]gputypes.SamplerBindingType{
	"filtering":     gputypes.SamplerBindingTypeFiltering,
	"non-filtering": gputypes.SamplerBindingTypeNonFiltering,
	"comparison":    gputypes.SamplerBindingTypeComparison,
}

var sampleTypes = map[string]gputypes.TextureSampleType{
	"float":              gputypes.TextureSampleTypeFloat,
	"unfilterable-float": gputypes.TextureSampleTypeUnfilterableFloat,
	"depth":              gputypes.TextureSampleTypeDepth,
	"sint":               gputypes.TextureSampleTypeSint,
	"uint":               gputypes.TextureSampleTypeUint,
}

var accessModes = map[string]gputypes.StorageTextureAccess{
	"write-only": gputypes.StorageTextureAccessWriteOnly,
	"read-only":  gputypes.StorageTextureAccessReadOnly,
	"read-write": gputypes.StorageTextureAccessReadWrite,
}

var viewDimensions = map[string]gputypes.TextureViewDimension{
	"1d":         gputypes.TextureViewDimension1D,
	"2d":         gputypes.TextureViewDimension2D,
	"2d-array":   gputypes.TextureViewDimension2DArray,
	"cube":       gputypes.TextureViewDimensionCube,
	"cube-array": gputypes.TextureViewDimensionCubeArray,
	"3d":         gputypes.TextureViewDimension3D,
}
