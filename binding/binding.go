// Package binding defines the data model of a single resource binding:
// the typed index spaces, the per-kind binding layouts, the API-level
// layout entry and the aggregate binding counts validated against device
// limits.
package binding

import (
	"fmt"
	"strings"
)

// Number is the sparse, user-facing binding number (WGSL @binding(N)).
type Number uint32

// Index is the dense index a bind group layout assigns to a binding after
// sorting. Indices below the layout's buffer count are buffers.
type Index uint32

// GroupIndex is a bind group slot (WGSL @group(N)).
type GroupIndex uint32

const (
	// MaxBindGroups is the number of bind group slots of a pipeline layout.
	MaxBindGroups = 4

	// MaxBindingsPerBindGroup bounds user binding numbers. Synthetic
	// bindings created by external texture expansion are numbered from
	// here upward so they never collide with user bindings.
	MaxBindingsPerBindGroup = 1000

	// MaxVertexBuffers is the number of vertex buffer slots.
	MaxVertexBuffers = 8
)

// ShaderStage is a set of shader stages.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute

	StageNone ShaderStage = 0
	StageAll              = StageVertex | StageFragment | StageCompute
)

// NumStages is the number of distinct shader stages.
const NumStages = 3

// Stages lists the single stages in per-stage count order.
var Stages = [NumStages]ShaderStage{StageVertex, StageFragment, StageCompute}

// Has reports whether every stage in o is in s.
func (s ShaderStage) Has(o ShaderStage) bool { return s&o == o }

// String returns the stage names joined by "|".
func (s ShaderStage) String() string {
	if s == StageNone {
		return "None"
	}
	var parts []string
	if s&StageVertex != 0 {
		parts = append(parts, "Vertex")
	}
	if s&StageFragment != 0 {
		parts = append(parts, "Fragment")
	}
	if s&StageCompute != 0 {
		parts = append(parts, "Compute")
	}
	if rest := s &^ StageAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// Info describes one packed binding slot of a bind group layout.
type Info struct {
	Binding    Number
	Visibility ShaderStage

	// ArraySize is the size of the binding array the slot belongs to and
	// IndexInArray its position. Non-array bindings have size 1, index 0.
	ArraySize    uint32
	IndexInArray uint32

	Layout Layout
}

// Kind returns the kind of the binding layout.
func (i Info) Kind() Kind { return i.Layout.Kind() }

// IsBuffer reports whether the binding is a buffer binding.
func (i Info) IsBuffer() bool {
	_, ok := i.Layout.(BufferLayout)
	return ok
}

// Buffer returns the buffer layout of a buffer binding.
func (i Info) Buffer() (BufferLayout, bool) {
	b, ok := i.Layout.(BufferLayout)
	return b, ok
}
