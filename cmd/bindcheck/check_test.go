package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/binding"
)

const scaleWGSL = `
struct Params {
    scale: f32,
    count: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x < params.count) {
        data[id.x] = data[id.x] * params.scale;
    }
}
`

func writeFiles(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scale.wgsl"), []byte(scaleWGSL), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "layouts.toml")
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func manifestWithData(dataType string) string {
	return `
shader = "scale.wgsl"

[[groups]]
group = 0

  [[groups.entries]]
  binding = 0
  visibility = ["compute"]
  buffer = "uniform"

  [[groups.entries]]
  binding = 1
  visibility = ["compute"]
  buffer = "` + dataType + `"
`
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		dataType string
		wantFail bool
		wantErr  string
	}{
		{"compatible", "storage", false, ""},
		{"read-only layout for read-write buffer", "read-only-storage", true, "binding 1"},
		{"wrong kind", "uniform", true, "binding 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Check(writeFiles(t, manifestWithData(tt.dataType)))
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if len(r.Results) != 1 {
				t.Fatalf("results = %d, want 1", len(r.Results))
			}
			res := r.Results[0]
			if res.EntryPoint != "main" || res.Stage != binding.StageCompute {
				t.Errorf("result for %s [%s]", res.EntryPoint, res.Stage)
			}
			if r.Failed() != tt.wantFail {
				t.Fatalf("Failed() = %v, want %v (err %v)", r.Failed(), tt.wantFail, res.Err)
			}
			if tt.wantErr != "" && !strings.Contains(res.Err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", res.Err, tt.wantErr)
			}

			var out bytes.Buffer
			r.Print(&out)
			prefix := "  ok   main"
			if tt.wantFail {
				prefix = "  FAIL main"
			}
			if !strings.Contains(out.String(), prefix) {
				t.Errorf("report lacks %q:\n%s", prefix, out.String())
			}
		})
	}
}

func TestCheckMissingGroup(t *testing.T) {
	r, err := Check(writeFiles(t, `shader = "scale.wgsl"`))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !r.Failed() {
		t.Error("a shader using group 0 passed against an empty pipeline layout")
	}
}

func TestManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"no shader", `label = "x"`, "no shader"},
		{"unknown key", "shader = \"scale.wgsl\"\ncolour = 1\n", "colour"},
		{"two payloads", `
shader = "scale.wgsl"
[[groups]]
group = 0
  [[groups.entries]]
  binding = 0
  buffer = "uniform"
  sampler = "filtering"
`, "exactly one"},
		{"unknown format", `
shader = "scale.wgsl"
[[groups]]
group = 0
  [[groups.entries]]
  binding = 0
  visibility = ["compute"]
  storage_texture = "write-only"
  format = "rgba99"
`, "unknown texture format"},
		{"unknown stage", `
shader = "scale.wgsl"
[[groups]]
group = 1
  [[groups.entries]]
  binding = 0
  visibility = ["geometry"]
  buffer = "uniform"
`, "unknown stage"},
		{"group out of range", `
shader = "scale.wgsl"
[[groups]]
group = 4
`, "exceeds"},
		{"duplicate group", `
shader = "scale.wgsl"
[[groups]]
group = 0
[[groups]]
group = 0
`, "declared twice"},
		{"layout validation", `
shader = "scale.wgsl"
[[groups]]
group = 0
  [[groups.entries]]
  binding = 0
  visibility = ["vertex"]
  storage_texture = "write-only"
  format = "rgba8unorm"
`, "group 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Check(writeFiles(t, tt.manifest))
			if err == nil {
				t.Fatal("Check succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestManifestDescriptors(t *testing.T) {
	m, err := LoadManifest(writeFiles(t, `
shader = "scale.wgsl"

[[groups]]
group = 2
label = "material"

  [[groups.entries]]
  binding = 0
  visibility = ["fragment"]
  texture = "float"
  view_dimension = "2d-array"
  array_size = 3

  [[groups.entries]]
  binding = 4
  visibility = ["Fragment"]
  sampler = "filtering"
`))
	if err != nil {
		t.Fatal(err)
	}
	descs, err := m.Descriptors()
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 3 || descs[0] != nil || descs[1] != nil || descs[2] == nil {
		t.Fatalf("descriptors = %v", descs)
	}
	d := descs[2]
	if d.Label != "material" || len(d.Entries) != 2 {
		t.Fatalf("group 2 = %+v", d)
	}
	tex := d.Entries[0]
	if tex.Texture == nil || tex.Texture.ViewDimension != gputypes.TextureViewDimension2DArray || tex.BindingArraySize != 3 {
		t.Errorf("texture entry = %+v", tex)
	}
	if s := d.Entries[1]; s.Sampler == nil || s.Visibility != binding.StageFragment {
		t.Errorf("sampler entry = %+v", s)
	}
	if filepath.Base(m.ShaderPath()) != "scale.wgsl" || !filepath.IsAbs(m.ShaderPath()) {
		t.Errorf("ShaderPath() = %s", m.ShaderPath())
	}
}

func TestRunOnce(t *testing.T) {
	var out, logs bytes.Buffer
	logger := newLogger(&logs, false)

	if got := runOnce(writeFiles(t, manifestWithData("storage")), &out, logger); got != 0 {
		t.Errorf("compatible manifest: status %d", got)
	}
	if got := runOnce(writeFiles(t, manifestWithData("uniform")), &out, logger); got != 1 {
		t.Errorf("incompatible manifest: status %d", got)
	}
	if got := runOnce(filepath.Join(t.TempDir(), "missing.toml"), &out, logger); got != 2 {
		t.Errorf("missing manifest: status %d", got)
	}
	if !strings.Contains(logs.String(), "check failed") {
		t.Errorf("load failure not logged:\n%s", logs.String())
	}
}

func TestWatcherRelevant(t *testing.T) {
	w, err := newWatcher(newLogger(&bytes.Buffer{}, true))
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()

	path := writeFiles(t, manifestWithData("storage"))
	if err := w.track(path); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(filepath.Dir(path), "other.txt")

	tests := []struct {
		e    fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: other, Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.e); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.e, got, tt.want)
		}
	}
}
