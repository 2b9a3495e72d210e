package ravel

import (
	"fmt"
	"github.com/cybergodev/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind describes the storage form of a [Value].
type Kind int

const (
	// KindNone is the kind of the zero Value. It represents "no value".
	KindNone Kind = iota
	KindText
	KindInt
	KindUint
	KindFloat
	KindBool
	// KindBlob marks a value stored as its encoded text form.
	KindBlob
)

var kindStrings = []string{"None", "Text", "Int", "Uint", "Float", "Bool", "Blob"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return "<unknown ravel.Kind>"
}

// Value is a stored context value. Once a value enters a [Context] it is a
// Value of exactly one of the kinds above: scalars keep their native form,
// everything else is encoded through the [Codec] into a text blob.
//
// Values are comparable with ==. Float payloads compare by bit pattern, so a
// stored NaN compares equal to itself and re-merging it reports no change.
type Value struct {
	kind Kind

	// num holds the payload of the Int, Uint, Float and Bool kinds
	num uint64

	// str holds the payload of the Text and Blob kinds
	str string
}

// TextValue returns a Value holding the text v.
func TextValue(v string) Value {
	return Value{kind: KindText, str: v}
}

// IntValue returns a Value holding the signed integer v.
func IntValue(v int64) Value {
	return Value{kind: KindInt, num: uint64(v)}
}

// UintValue returns a Value holding the unsigned integer v.
func UintValue(v uint64) Value {
	return Value{kind: KindUint, num: v}
}

// FloatValue returns a Value holding the float v.
func FloatValue(v float64) Value {
	return Value{kind: KindFloat, num: math.Float64bits(v)}
}

// BoolValue returns a Value holding the bool v.
func BoolValue(v bool) Value {
	var num uint64
	if v {
		num = 1
	}
	return Value{kind: KindBool, num: num}
}

// BlobValue returns a Value holding the already encoded text v.
func BlobValue(v string) Value {
	return Value{kind: KindBlob, str: v}
}

// Kind returns the storage form of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Any returns the native Go form of the value: string for text, int64,
// uint64, float64 and bool for the scalar kinds, the encoded text for blobs
// and nil for the zero Value.
func (v Value) Any() any {
	switch v.kind {
	case KindNone:
		return nil
	case KindText, KindBlob:
		return v.str
	case KindInt:
		return int64(v.num)
	case KindUint:
		return v.num
	case KindFloat:
		return math.Float64frombits(v.num)
	case KindBool:
		return v.num != 0
	default:
		panic(fmt.Sprintf("bad kind: %s", v.kind))
	}
}

// String renders the value as text, like fmt.Sprint would. Unlike the other
// accessors it never panics.
func (v Value) String() string {
	switch v.kind {
	case KindText, KindBlob:
		return v.str
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindUint:
		return strconv.FormatUint(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	default:
		return ""
	}
}

// Int64 returns the payload of a KindInt value. It panics for other kinds.
func (v Value) Int64() int64 {
	mustKind(v.kind, KindInt)
	return int64(v.num)
}

// Uint64 returns the payload of a KindUint value. It panics for other kinds.
func (v Value) Uint64() uint64 {
	mustKind(v.kind, KindUint)
	return v.num
}

// Float64 returns the payload of a KindFloat value. It panics for other kinds.
func (v Value) Float64() float64 {
	mustKind(v.kind, KindFloat)
	return math.Float64frombits(v.num)
}

// Bool returns the payload of a KindBool value. It panics for other kinds.
func (v Value) Bool() bool {
	mustKind(v.kind, KindBool)
	return v.num != 0
}

func mustKind(got, want Kind) {
	if got != want {
		panic(fmt.Sprintf("value kind is %s, not %s", got, want))
	}
}

// Normalize converts a raw extracted value into its storage form: string
// kinds keep their text, integer, unsigned, float and bool kinds are stored
// verbatim, and everything else is encoded through the codec into a text
// blob. A Value passes through unchanged, nil yields the zero Value.
func (e *Extractor) Normalize(value any) (Value, error) {
	if isNil(value) {
		return Value{}, nil
	}

	if v, ok := value.(Value); ok {
		return v, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return TextValue(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UintValue(rv.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil

	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	}

	encoded, err := e.codecOrDefault().Marshal(value)
	if err != nil {
		return Value{}, fmt.Errorf("encode %T value: %w", value, err)
	}

	return BlobValue(string(encoded)), nil
}

// Normalize converts a raw value into its storage form using the default
// Extractor.
func Normalize(value any) (Value, error) {
	return std.Normalize(value)
}

// MarshalJSON writes the wire form of the value: text and blobs as JSON
// strings, numbers as numbers, bools as booleans and the zero Value as null.
// NaN and infinities have no JSON number form and fail with an error.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat {
		if f := math.Float64frombits(v.num); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("marshal value: %v is not a JSON number", f)
		}
	}

	return json.Marshal(v.Any())
}

// UnmarshalJSON restores a value from its wire form. Scalars map back onto
// their kinds, with whole numbers classified as KindInt unless they only fit
// a uint64. Objects and arrays re-enter as blobs of their raw text; an
// encoded blob is indistinguishable from plain text on the wire and reloads
// as KindText.
func (v *Value) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("unmarshal value: empty input")
	}

	switch text[0] {
	case 'n':
		if text != "null" {
			return fmt.Errorf("unmarshal value: invalid literal %q", text)
		}
		*v = Value{}
		return nil

	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal text value: %w", err)
		}
		*v = TextValue(s)
		return nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("unmarshal bool value: %w", err)
		}
		*v = BoolValue(b)
		return nil

	case '{', '[':
		*v = BlobValue(text)
		return nil
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		*v = IntValue(i)
		return nil
	}

	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		*v = UintValue(u)
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("unmarshal number value %q: %w", text, err)
	}

	// ParseFloat accepts spellings like NaN and Inf that JSON does not
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("unmarshal number value %q: not a JSON number", text)
	}

	*v = FloatValue(f)
	return nil
}
