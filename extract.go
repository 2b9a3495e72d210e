package ravel

import (
	"errors"
	"fmt"
	"go.uber.org/zap"
	"reflect"
	"sync"
)

// DefaultTag is the struct tag key consulted when an Extractor was not
// configured with a tag of its own.
const DefaultTag = "ravel"

var ErrNilSource = errors.New("nil source value")
var ErrNotStruct = errors.New("not a struct")
var ErrCycle = errors.New("cycle through flattened values")

// ExtractError reports a fatal failure while extracting a context fragment.
// It aborts the whole extraction; per-field conditions like nil values or
// out-of-range indexes never raise it.
type ExtractError struct {
	Type reflect.Type
	Err  error
}

func (e ExtractError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("extract context: %s", e.Err)
	}
	return fmt.Sprintf("extract context from %q: %s", e.Type, e.Err)
}

func (e ExtractError) Unwrap() error { return e.Err }

// Origin labels where an extracted member came from. It only affects
// diagnostics, never placement.
type Origin string

const (
	OriginField Origin = "field"
	OriginParam Origin = "param"
)

// The default Extractor instance.
var std Extractor

var nopLogger = zap.NewNop()

// Extractor turns tagged struct fields into context fragments and is the
// write path into a [Context]. It is stateless apart from a per-type plan
// cache and safe for concurrent use.
//
// The zero Extractor is ready to use: it reads [DefaultTag], logs nothing
// and encodes through the default JSON codec.
type Extractor struct {
	// the struct tag that is used
	structTag string

	// Cache for extraction plans, indexed by reflect.Type
	planCache sync.Map

	log   *zap.Logger
	codec Codec
}

func New() *Extractor {
	return &Extractor{structTag: DefaultTag}
}

// WithTag returns an Extractor reading directives from the given struct tag
// key. The plan cache is not carried over.
func (e *Extractor) WithTag(structTag string) *Extractor {
	if e.structTag == structTag {
		return e
	}

	return &Extractor{structTag: structTag, log: e.log, codec: e.codec}
}

// WithLogger returns an Extractor emitting diagnostics to log.
func (e *Extractor) WithLogger(log *zap.Logger) *Extractor {
	return &Extractor{structTag: e.structTag, log: log, codec: e.codec}
}

// WithCodec returns an Extractor encoding and decoding through codec.
func (e *Extractor) WithCodec(codec Codec) *Extractor {
	return &Extractor{structTag: e.structTag, log: e.log, codec: codec}
}

func (e *Extractor) tagOrDefault() string {
	if e.structTag == "" {
		return DefaultTag
	}
	return e.structTag
}

func (e *Extractor) logOrNop() *zap.Logger {
	if e.log == nil {
		return nopLogger
	}
	return e.log
}

func (e *Extractor) codecOrDefault() Codec {
	if e.codec == nil {
		return jsonCodec{}
	}
	return e.codec
}

// Extract walks the tagged fields of src and returns the context fragment
// they produce. src must be a struct or a pointer chain leading to one; nil
// input and other kinds fail with an [ExtractError], as does a pointer cycle
// reached through flatten directives (wrapping [ErrCycle]).
//
// Ownership of the returned fragment transfers to the caller, values in it
// are still raw. Merge them into a [Context] to normalize.
func (e *Extractor) Extract(src any) (map[string]any, error) {
	return e.extractAny(src, nil)
}

// Extract extracts a context fragment from src using the default Extractor.
func Extract(src any) (map[string]any, error) {
	return std.Extract(src)
}

// extractAny is Extract with the set of pointers on the active flatten
// chain, keyed by their interface identity.
func (e *Extractor) extractAny(src any, seen map[any]struct{}) (frag map[string]any, err error) {
	rv := reflect.ValueOf(src)
	if !rv.IsValid() {
		return nil, ExtractError{Err: ErrNilSource}
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, ExtractError{Type: rv.Type(), Err: ErrNilSource}
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, ExtractError{Type: rv.Type(), Err: ErrNotStruct}
	}

	// reflective failures surface as panics. turn them into an ExtractError
	// instead of unwinding through the caller.
	defer func() {
		if r := recover(); r != nil {
			frag, err = nil, ExtractError{Type: rv.Type(), Err: fmt.Errorf("%v", r)}
		}
	}()

	return e.extract(rv, seen)
}

func (e *Extractor) extract(rv reflect.Value, seen map[any]struct{}) (map[string]any, error) {
	plan, err := e.planFor(rv.Type())
	if err != nil {
		return nil, ExtractError{Type: rv.Type(), Err: err}
	}

	frag := make(map[string]any, 8)

	if plan.fieldCount == 0 {
		e.logOrNop().Warn("type has no fields", zap.Stringer("type", rv.Type()))
		return frag, nil
	}

	for _, fi := range plan.fields {
		value := rv.FieldByIndex(fi.Index).Interface()
		if err := e.apply(OriginField, fi.Name, value, fi.Directive, frag, seen); err != nil {
			return nil, err
		}
	}

	return frag, nil
}

func (e *Extractor) planFor(ty reflect.Type) (extractPlan, error) {
	if cached, ok := e.planCache.Load(ty); ok {
		return cached.(extractPlan), nil
	}

	plan, err := planOf(ty, e.tagOrDefault())
	if err != nil {
		return extractPlan{}, err
	}

	e.planCache.Store(ty, plan)

	return plan, nil
}

// Apply places one member into frag under the directive's rules: nil values
// are skipped, an index directive resolves a sequence element first, a
// flatten directive extracts the value's own tagged fields into frag, and
// anything else is stored raw under the resolved key.
//
// Extract uses Apply for every field it visits; callers use it directly for
// members that do not live in a struct, such as call parameters.
func (e *Extractor) Apply(origin Origin, name string, value any, d Directive, frag map[string]any) error {
	return e.apply(origin, name, value, d, frag, nil)
}

// Apply places one member into frag using the default Extractor.
func Apply(origin Origin, name string, value any, d Directive, frag map[string]any) error {
	return std.Apply(origin, name, value, d, frag)
}

func (e *Extractor) apply(origin Origin, name string, value any, d Directive, frag map[string]any, seen map[any]struct{}) error {
	if isNil(value) {
		return nil
	}

	if d.HasIndex {
		value = e.elementAt(origin, name, value, d.Index)
		if isNil(value) {
			return nil
		}
	}

	if d.Flatten {
		// re-entering a pointer already on this flatten chain is a cycle
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer {
			if _, ok := seen[value]; ok {
				return ExtractError{Type: rv.Type(), Err: ErrCycle}
			}

			if seen == nil {
				seen = make(map[any]struct{})
			}

			seen[value] = struct{}{}
			defer delete(seen, value)
		}

		nested, err := e.extractAny(value, seen)
		if errors.Is(err, ErrNilSource) {
			// a nil one indirection further down, skipped like any other
			return nil
		}

		if errors.Is(err, ErrNotStruct) {
			e.logOrNop().Warn("flatten directive on non-struct value",
				zap.String(string(origin), name),
				zap.Stringer("type", reflect.TypeOf(value)))
			return nil
		}

		if err != nil {
			return err
		}

		for key, nestedValue := range nested {
			frag[key] = nestedValue
		}

		return nil
	}

	frag[d.Key(name)] = value

	return nil
}

// elementAt resolves an index directive against a sequence value. Empty and
// too-short sequences resolve to nil so the member is skipped; non-sequence
// values pass through unchanged with a warning.
func (e *Extractor) elementAt(origin Origin, name string, value any, index int) any {
	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		e.logOrNop().Warn("index directive on non-sequence value",
			zap.String(string(origin), name),
			zap.Stringer("type", rv.Type()))
		return value
	}

	if rv.Len() == 0 {
		return nil
	}

	if index >= rv.Len() {
		e.logOrNop().Debug("index out of range",
			zap.String(string(origin), name),
			zap.Int("index", index),
			zap.Int("len", rv.Len()))
		return nil
	}

	return rv.Index(index).Interface()
}

// isNil reports whether value is nil in any of its representable forms,
// including a typed nil inside a non-nil interface.
func isNil(value any) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
