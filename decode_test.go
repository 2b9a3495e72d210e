package ravel

import (
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	type Payment struct {
		Method string `json:"method"`
		Cents  int64  `json:"cents"`
	}

	stored, err := Normalize(Payment{Method: "card", Cents: 100})
	require.NoError(t, err)
	require.Equal(t, stored.Kind(), KindBlob)

	got, err := Decode[*Payment]("payment", stored)
	require.NoError(t, err)
	require.Equal(t, got, &Payment{Method: "card", Cents: 100})
}

func TestDecodeNilStored(t *testing.T) {
	type Payment struct{ Cents int64 }

	got, err := Decode[*Payment]("payment", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = Decode[*Payment]("payment", Value{})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLookup(t *testing.T) {
	ctx := Context{}

	changed, err := MergeOne(ctx, "orderId", int64(42))
	require.NoError(t, err)
	require.True(t, changed)

	got, err := Lookup[*int64](ctx, "orderId")
	require.NoError(t, err)
	require.Equal(t, *got, int64(42))

	// a missing key behaves like a stored nil
	absent, err := Lookup[*int64](ctx, "absent")
	require.NoError(t, err)
	require.Nil(t, absent)
}

func TestDecodeIdentity(t *testing.T) {
	type User struct{ Name string }

	u := &User{Name: "A"}
	got, err := Decode[*User]("user", u)
	require.NoError(t, err)
	require.Same(t, got, u)

	anyGot, err := Decode[any]("n", 42)
	require.NoError(t, err)
	require.Equal(t, anyGot, 42)
}

func TestDecodeBoxesScalar(t *testing.T) {
	got, err := Decode[*int64]("k", int64(42))
	require.NoError(t, err)
	require.Equal(t, *got, int64(42))

	got, err = Decode[*int64]("k", IntValue(42))
	require.NoError(t, err)
	require.Equal(t, *got, int64(42))

	b, err := Decode[*bool]("k", BoolValue(true))
	require.NoError(t, err)
	require.Equal(t, *b, true)
}

func TestDecodeStringTarget(t *testing.T) {
	got, err := Decode[*string]("k", int64(42))
	require.NoError(t, err)
	require.Equal(t, *got, "42")

	got, err = Decode[*string]("k", true)
	require.NoError(t, err)
	require.Equal(t, *got, "true")

	got, err = Decode[*string]("k", TextValue("text"))
	require.NoError(t, err)
	require.Equal(t, *got, "text")
}

func TestDecodeParsesText(t *testing.T) {
	got, err := Decode[*int]("k", "42")
	require.NoError(t, err)
	require.Equal(t, *got, 42)

	type Order struct {
		ID int64 `json:"id"`
	}

	order, err := Decode[*Order]("k", `{"id": 7}`)
	require.NoError(t, err)
	require.Equal(t, order, &Order{ID: 7})

	ids, err := Decode[[]int]("k", BlobValue(`[1,2,3]`))
	require.NoError(t, err)
	require.Equal(t, ids, []int{1, 2, 3})

	m, err := Decode[map[string]any]("k", BlobValue(`{"a": 1}`))
	require.NoError(t, err)
	require.Equal(t, m, map[string]any{"a": 1.0})
}

func TestDecodeSerializesNonText(t *testing.T) {
	// a stored scalar reaching a different shape goes through the codec
	got, err := Decode[*float64]("k", int64(3))
	require.NoError(t, err)
	require.Equal(t, *got, 3.0)
}

func TestDecodeInvalidTarget(t *testing.T) {
	_, err := Decode[int]("k", int64(1))
	require.ErrorIs(t, err, ErrInvalidTarget)

	_, err = Decode[string]("k", "x")
	require.ErrorIs(t, err, ErrInvalidTarget)

	_, err = Decode[bool]("k", true)
	require.ErrorIs(t, err, ErrInvalidTarget)

	// rejected independent of the stored value, even for nil
	type S struct{}
	_, err = Decode[S]("k", nil)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestDecodeErrorDetails(t *testing.T) {
	_, err := Decode[*int]("orderId", "not-a-number")
	require.Error(t, err)

	var decodeErr DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, decodeErr.Key, "orderId")
	require.Equal(t, decodeErr.Source, reflect.TypeFor[string]())
	require.Equal(t, decodeErr.Target, reflect.TypeFor[*int]())
	require.NotNil(t, decodeErr.Unwrap())
}

func TestDecodeWithCustomCodec(t *testing.T) {
	var marshals, unmarshals int
	e := New().WithCodec(recordingCodec{marshals: &marshals, unmarshals: &unmarshals})

	// identity boxing never touches the codec
	got, err := DecodeWith[*int64](e, "k", IntValue(42))
	require.NoError(t, err)
	require.Equal(t, *got, int64(42))
	require.Equal(t, marshals, 0)

	f, err := DecodeWith[*float64](e, "k", int64(3))
	require.NoError(t, err)
	require.Equal(t, *f, 3.0)
	require.Equal(t, marshals, 1)
	require.Equal(t, unmarshals, 1)

	type User struct{ Name string }
	_, err = e.Normalize(User{Name: "A"})
	require.NoError(t, err)
	require.Equal(t, marshals, 2)
}

type recordingCodec struct {
	jsonCodec
	marshals   *int
	unmarshals *int
}

func (c recordingCodec) Marshal(v any) ([]byte, error) {
	*c.marshals++
	return c.jsonCodec.Marshal(v)
}

func (c recordingCodec) Unmarshal(data []byte, v any) error {
	*c.unmarshals++
	return c.jsonCodec.Unmarshal(data, v)
}
