// Package attr reads named attributes from host-owned records whose layout is
// only known at runtime.
//
// A Record is a chain of layers ordered most specific type first. Lookups walk
// the chain upward and the first layer declaring the attribute wins, the same
// way a field declared on a subclass shadows one on its parent.
package attr

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	// ErrNotFound reports that a layer does not declare the attribute.
	ErrNotFound = errors.New("attribute not found")
	// ErrAccessDenied reports that the attribute exists but cannot be read.
	ErrAccessDenied = errors.New("attribute access denied")
)

// Source is anything attributes can be read from by name.
type Source interface {
	Get(name string) (any, bool)
}

// Layer is one level of a record's type hierarchy.
type Layer interface {
	TypeName() string
	// Lookup returns ErrNotFound when the layer does not declare name.
	Lookup(name string) (any, error)
	// Names lists the attributes the layer declares, in no particular order.
	Names() []string
}

// Fields is a map-backed Layer.
type Fields struct {
	Type   string
	Values map[string]any
	// Denied attributes are declared but fail with ErrAccessDenied.
	Denied []string
}

func (f *Fields) TypeName() string { return f.Type }

func (f *Fields) Lookup(name string) (any, error) {
	for _, d := range f.Denied {
		if d == name {
			return nil, fmt.Errorf("%s.%s: %w", f.Type, name, ErrAccessDenied)
		}
	}
	v, ok := f.Values[name]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *Fields) Names() []string {
	names := make([]string, 0, len(f.Values)+len(f.Denied))
	for k := range f.Values {
		names = append(names, k)
	}
	names = append(names, f.Denied...)
	return names
}

// Record is a Source backed by a chain of layers.
type Record struct {
	layers []Layer
	logger *slog.Logger
}

// NewRecord builds a record from layers ordered most specific first.
func NewRecord(layers ...Layer) *Record {
	return &Record{layers: layers}
}

// WithLogger sets the logger used for access-failure warnings. Without one
// slog.Default is used.
func (r *Record) WithLogger(logger *slog.Logger) *Record {
	r.logger = logger
	return r
}

// TypeName returns the name of the most specific layer.
func (r *Record) TypeName() string {
	if r == nil || len(r.layers) == 0 {
		return ""
	}
	return r.layers[0].TypeName()
}

// Get resolves name against the layer chain. A layer error other than
// ErrNotFound is logged as a warning and ends the lookup as not found.
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	for _, layer := range r.layers {
		v, err := layer.Lookup(name)
		if err == nil {
			return v, true
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		r.log().Warn("attribute access failed",
			"type", layer.TypeName(),
			"attribute", name,
			"error", err,
		)
		return nil, false
	}
	return nil, false
}

func (r *Record) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Field is one entry of a record listing.
type Field struct {
	Layer string `json:"layer"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
	// Shadowed is set when a more specific layer declares the same name.
	Shadowed bool `json:"shadowed,omitempty"`
}

// List returns every attribute declared anywhere in the chain, grouped by
// layer from most to least specific, names sorted within a layer. Nested
// records are listed as their type name.
func (r *Record) List() []Field {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []Field
	for _, layer := range r.layers {
		names := layer.Names()
		sort.Strings(names)
		for _, name := range names {
			f := Field{Layer: layer.TypeName(), Name: name, Shadowed: seen[name]}
			v, err := layer.Lookup(name)
			if err != nil {
				f.Err = err.Error()
			} else if sub, ok := v.(*Record); ok {
				f.Value = sub.TypeName()
			} else {
				f.Value = v
			}
			seen[name] = true
			out = append(out, f)
		}
	}
	return out
}

// Get reads name from src. A nil source has no attributes.
func Get(src Source, name string) (any, bool) {
	if src == nil {
		return nil, false
	}
	return src.Get(name)
}

// List lists the attributes of src when it supports listing.
func List(src Source) []Field {
	if l, ok := src.(interface{ List() []Field }); ok {
		return l.List()
	}
	return nil
}
