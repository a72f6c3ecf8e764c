// SPDX-License-Identifier: MIT

// Package params stores automation parameters as atomically readable
// normalized values so the audio callback can sample them lock-free.
package params

import (
	"math"
	"sync"
	"sync/atomic"
)

// Parameter is a single automatable value. The normalized form lives
// in [0, 1]; the plain form lives in [Min, Max] native units. The
// stored value is the normalized one, kept as float64 bits in an
// atomic so readers on the audio thread never block.
type Parameter struct {
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64 // plain units

	value atomic.Uint64
}

// NewParameter creates a parameter and seeds it with its default.
func NewParameter(name, unit string, min, max, def float64) *Parameter {
	p := &Parameter{
		Name:    name,
		Unit:    unit,
		Min:     min,
		Max:     max,
		Default: def,
	}
	p.SetPlain(def)
	return p
}

// Normalized returns the current normalized value in [0, 1].
func (p *Parameter) Normalized() float64 {
	return math.Float64frombits(p.value.Load())
}

// SetNormalized stores a normalized value, clamped to [0, 1].
func (p *Parameter) SetNormalized(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	p.value.Store(math.Float64bits(v))
}

// Plain returns the current value in native units.
func (p *Parameter) Plain() float64 {
	return p.Denormalize(p.Normalized())
}

// SetPlain stores a native-unit value. Out-of-range values clamp to
// the parameter bounds via normalization.
func (p *Parameter) SetPlain(plain float64) {
	p.SetNormalized(p.Normalize(plain))
}

// Normalize converts a plain value to the normalized [0, 1] range,
// clamping outliers.
func (p *Parameter) Normalize(plain float64) float64 {
	if p.Max <= p.Min {
		return 0
	}
	normalized := (plain - p.Min) / (p.Max - p.Min)
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// Denormalize converts a normalized value to plain units.
func (p *Parameter) Denormalize(normalized float64) float64 {
	return p.Min + normalized*(p.Max-p.Min)
}

// Reset restores the default value.
func (p *Parameter) Reset() {
	p.SetPlain(p.Default)
}

// GainName is the master gain parameter key used on the wire.
const GainName = "gain"

// Gain bounds in dB. The bottom of the range mutes rather than merely
// attenuates.
const (
	GainMinDB     = -60.0
	GainMaxDB     = 0.0
	GainDefaultDB = 0.0
)

// NewGain returns the master gain parameter (-60..0 dB, default 0).
func NewGain() *Parameter {
	return NewParameter(GainName, "dB", GainMinDB, GainMaxDB, GainDefaultDB)
}

// GainFactor converts the parameter's current dB value to a linear
// multiplier. The minimum of the range is treated as silence.
func GainFactor(p *Parameter) float32 {
	db := p.Plain()
	if db <= GainMinDB {
		return 0
	}
	return float32(math.Pow(10, db/20))
}

// Registry holds the parameter set keyed by wire name.
type Registry struct {
	mu     sync.RWMutex
	params map[string]*Parameter
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{params: make(map[string]*Parameter)}
}

// Add registers a parameter. Re-adding a name replaces the previous
// entry but keeps its position.
func (r *Registry) Add(p *Parameter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.params[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	r.params[p.Name] = p
}

// Get looks a parameter up by name.
func (r *Registry) Get(name string) (*Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[name]
	return p, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
