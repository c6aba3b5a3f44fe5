package bindcore

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/limits"
)

func TestOptions(t *testing.T) {
	gpu := gputypes.DefaultLimits()
	gpu.MaxBindGroups = 8

	custom := limits.Default()
	custom.MaxVertexBuffers = 16

	tests := []struct {
		name       string
		opts       []Option
		wantGroups uint32
		wantCompat bool
	}{
		{"default", nil, 4, false},
		{"limits", []Option{WithLimits(custom)}, 4, false},
		{"gpu limits", []Option{WithGPULimits(gpu)}, 8, false},
		{"compatibility", []Option{WithCompatibilityMode()}, limits.Compatibility().MaxBindGroups, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			for _, opt := range tt.opts {
				opt(&o)
			}
			if o.limits.MaxBindGroups != tt.wantGroups {
				t.Errorf("MaxBindGroups = %d, want %d", o.limits.MaxBindGroups, tt.wantGroups)
			}
			if o.compatibility != tt.wantCompat {
				t.Errorf("compatibility = %v, want %v", o.compatibility, tt.wantCompat)
			}
		})
	}

	o := defaultOptions()
	WithLimits(custom)(&o)
	if o.limits.MaxVertexBuffers != 16 {
		t.Errorf("WithLimits: MaxVertexBuffers = %d", o.limits.MaxVertexBuffers)
	}
}

func TestNewDeviceInvalidLimitsPanics(t *testing.T) {
	bad := limits.Default()
	bad.MinUniformBufferOffsetAlignment = 3
	defer func() {
		if recover() == nil {
			t.Error("NewDevice with invalid limits did not panic")
		}
	}()
	NewDevice(WithLimits(bad))
}
