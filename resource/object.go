// Package resource implements the frontend objects that bindings refer to:
// buffers, textures, texture views, samplers and external textures.
//
// Objects are immutable after creation apart from their reference count.
// Their properties are queried by layout and bind group validation and by
// the command-buffer state tracker.
package resource

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/bindcore/internal/logging"
)

// Object is the state shared by every reference-counted object: a debug
// label, a unique identity and a reference count.
//
// The zero value is not usable; call Init first. Object must not be
// copied after Init.
type Object struct {
	kind  string
	label string
	id    uuid.UUID

	refs atomic.Int32

	mu    sync.Mutex
	hooks []func()
}

// Init prepares the object with one reference held by the creator.
func (o *Object) Init(kind, label string) {
	o.kind = kind
	o.label = label
	o.id = uuid.New()
	o.refs.Store(1)
}

// Kind returns the object type name, e.g. "Buffer".
func (o *Object) Kind() string { return o.kind }

// Label returns the debug label.
func (o *Object) Label() string { return o.label }

// ID returns the object's unique identity.
func (o *Object) ID() uuid.UUID { return o.id }

// String formats the object for error messages: [Kind "label"], or the
// short identity when the object has no label.
func (o *Object) String() string {
	if o == nil {
		return "[nil]"
	}
	if o.label != "" {
		return fmt.Sprintf("[%s %q]", o.kind, o.label)
	}
	return fmt.Sprintf("[%s %s]", o.kind, o.id.String()[:8])
}

// Refs returns the current reference count.
func (o *Object) Refs() int32 { return o.refs.Load() }

// Alive reports whether the object still holds references.
func (o *Object) Alive() bool { return o.refs.Load() > 0 }

// AddRef takes an additional reference.
func (o *Object) AddRef() { o.refs.Add(1) }

// TryAddRef takes an additional reference unless the last one has already
// been released. It reports whether a reference was taken.
func (o *Object) TryAddRef() bool {
	for {
		n := o.refs.Load()
		if n <= 0 {
			return false
		}
		if o.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// OnDestroy registers f to run when the last reference is released.
// Hooks run in reverse registration order.
func (o *Object) OnDestroy(f func()) {
	o.mu.Lock()
	o.hooks = append(o.hooks, f)
	o.mu.Unlock()
}

// Release drops one reference. It reports whether this call released the
// last one, in which case the destroy hooks have run.
func (o *Object) Release() bool {
	n := o.refs.Add(-1)
	if n > 0 {
		return false
	}
	if n < 0 {
		o.refs.Store(0)
		logging.Logger().Warn("resource: released more times than referenced", "object", o.String())
		return false
	}
	o.mu.Lock()
	hooks := o.hooks
	o.hooks = nil
	o.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	return true
}

// Bindable is implemented by the objects a bind group entry can reference.
type Bindable interface {
	fmt.Stringer
	AddRef()
	Release() bool
	isBindable()
}

func (*Buffer) isBindable()          {}
func (*TextureView) isBindable()     {}
func (*Sampler) isBindable()         {}
func (*ExternalTexture) isBindable() {}
