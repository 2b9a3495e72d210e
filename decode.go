package ravel

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidTarget marks decode target types that cannot hold a missing
// value.
var ErrInvalidTarget = errors.New("invalid decode target")

// DecodeError reports a failed conversion of the stored value under Key
// from its runtime Source type into the requested Target type. It is scoped
// to the single retrieval and does not invalidate the context.
type DecodeError struct {
	Key    string
	Source reflect.Type
	Target reflect.Type
	Err    error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode context value %q from %q into %q: %s", e.Key, e.Source, e.Target, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

var tyStringPointer = reflect.TypeFor[*string]()

// Decode converts the stored context value under key into a T, using the
// default Extractor. T must be of a kind that can represent absence (a
// pointer, slice, map, interface, chan or func), so a missing or nil stored
// value can round-trip as the zero T; other kinds fail with
// [ErrInvalidTarget] no matter what is stored.
//
// A stored value whose type already satisfies T is returned as is. A value
// assignable to T's pointee is boxed. A *string target renders the value as
// text. Everything else goes through the codec: stored text is parsed
// directly, other values are serialized first and then parsed into T.
// Parse failures carry key, source type and target type in a [DecodeError].
func Decode[T any](key string, stored any) (T, error) {
	return DecodeWith[T](&std, key, stored)
}

// DecodeWith is [Decode] with an explicit Extractor.
func DecodeWith[T any](e *Extractor, key string, stored any) (T, error) {
	var zero T

	ty := reflect.TypeFor[T]()
	switch ty.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map,
		reflect.Interface, reflect.Chan, reflect.Func:
	default:
		return zero, fmt.Errorf("decode %q into %q, which cannot hold a missing value: %w", key, ty, ErrInvalidTarget)
	}

	if v, ok := stored.(Value); ok {
		stored = v.Any()
	}

	if isNil(stored) {
		return zero, nil
	}

	if t, ok := stored.(T); ok {
		return t, nil
	}

	if ty.Kind() == reflect.Pointer {
		sv := reflect.ValueOf(stored)
		if sv.Type().AssignableTo(ty.Elem()) {
			box := reflect.New(ty.Elem())
			box.Elem().Set(sv)
			return box.Interface().(T), nil
		}
	}

	if ty == tyStringPointer {
		text := fmt.Sprint(stored)
		return any(&text).(T), nil
	}

	return decodeJSON[T](e, key, stored)
}

// Lookup fetches key from ctx and decodes it into a T. A missing key
// behaves like a stored nil and yields the zero T.
func Lookup[T any](ctx Context, key string) (T, error) {
	return LookupWith[T](&std, ctx, key)
}

// LookupWith is [Lookup] with an explicit Extractor.
func LookupWith[T any](e *Extractor, ctx Context, key string) (T, error) {
	return DecodeWith[T](e, key, ctx[key])
}

// decodeJSON runs the codec path: text parses directly, any other value is
// serialized to its text form first, then parsed into T. The serialize step
// exists because a stored scalar is not itself parseable text but must
// still reach arbitrary target shapes.
func decodeJSON[T any](e *Extractor, key string, stored any) (T, error) {
	var zero T

	codec := e.codecOrDefault()
	sv := reflect.ValueOf(stored)

	var data []byte
	if sv.Kind() == reflect.String {
		data = []byte(sv.String())
	} else {
		encoded, err := codec.Marshal(stored)
		if err != nil {
			return zero, DecodeError{Key: key, Source: sv.Type(), Target: reflect.TypeFor[T](), Err: err}
		}
		data = encoded
	}

	var target T
	if err := codec.Unmarshal(data, &target); err != nil {
		return zero, DecodeError{Key: key, Source: sv.Type(), Target: reflect.TypeFor[T](), Err: err}
	}

	return target, nil
}
