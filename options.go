package bindcore

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/bindcore/limits"
)

// Option configures a Device during creation.
//
// Example:
//
//	// Default limits
//	dev := bindcore.NewDevice()
//
//	// Limits of an adapter, with uncaptured errors logged
//	dev := bindcore.NewDevice(
//	    bindcore.WithGPULimits(adapterLimits),
//	    bindcore.WithErrorCallback(func(err error) { log.Print(err) }),
//	)
type Option func(*options)

// options holds the configuration of a Device.
type options struct {
	limits        limits.Limits
	compatibility bool
	allowInternal bool
	onError       func(error)
}

// defaultOptions returns the default device options.
func defaultOptions() options {
	return options{limits: limits.Default()}
}

// WithLimits sets the device limits.
func WithLimits(l limits.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithGPULimits sets the device limits from API limits. Sub-limits the API
// struct does not carry keep their defaults.
func WithGPULimits(l gputypes.Limits) Option {
	return func(o *options) {
		o.limits = limits.FromGPUTypes(l)
	}
}

// WithCompatibilityMode enables compatibility mode: the compatibility
// limits apply and texture bindings must use the view dimension their
// texture was created with.
func WithCompatibilityMode() Option {
	return func(o *options) {
		o.compatibility = true
		o.limits = limits.Compatibility()
	}
}

// WithErrorCallback registers f to receive every validation failure the
// device reports, in addition to the error returned to the caller.
func WithErrorCallback(f func(error)) Option {
	return func(o *options) {
		o.onError = f
	}
}

// WithAllowInternalBindings lets layouts use internal binding types. Only
// internal passes should enable it.
func WithAllowInternalBindings() Option {
	return func(o *options) {
		o.allowInternal = true
	}
}
