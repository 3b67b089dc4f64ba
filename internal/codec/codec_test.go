package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestJSON_EncodeScalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 42, "42"},
		{"string", "hello", `"hello"`},
		{"multiline string", "Hello\nWorld", `"Hello\nWorld"`},
		{"bool", true, "true"},
		{"float", 2.5, "2.5"},
		{"empty string", "", `""`},
		{"nil", nil, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON{}.Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSON_EncodeMapsDeterministically(t *testing.T) {
	a, err := JSON{}.Encode(map[string]int{"x": 1, "a": 2, "m": 3})
	require.NoError(t, err)
	b, err := JSON{}.Encode(map[string]any{"m": 3, "x": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"x":1}`, a)
	assert.Equal(t, a, b)
}

func TestJSON_EncodeStructUsesTags(t *testing.T) {
	got, err := JSON{}.Encode(person{Name: "Jane Doe", Age: 35})
	require.NoError(t, err)
	assert.Equal(t, `{"age":35,"name":"Jane Doe"}`, got)
}

func TestJSON_EncodeUnsupported(t *testing.T) {
	_, err := JSON{}.Encode(make(chan int))
	require.Error(t, err)
	assert.True(t, IsCodecError(err))
}

func TestJSON_RoundTripList(t *testing.T) {
	in := []person{{"John Doe", 30}, {"Jane Doe", 35}}
	raw, err := JSON{}.Encode(in)
	require.NoError(t, err)

	var out []person
	require.NoError(t, JSON{}.Decode(raw, &out))
	assert.Equal(t, in, out)
}

func TestValue_Absent(t *testing.T) {
	v := Absent("missing")
	assert.False(t, v.IsPresent())
	assert.Equal(t, "missing", v.Field())

	_, err := v.AsString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAbsent))
}

func TestValue_AbsentDiffersFromEmptyAndZero(t *testing.T) {
	absent := Absent("f")
	empty := Present(nil, "f", `""`)
	zero := Present(nil, "f", `0`)

	assert.False(t, absent.Equal(empty))
	assert.False(t, absent.Equal(zero))
	assert.False(t, empty.Equal(zero))
	assert.True(t, empty.Equal(Present(nil, "other", `""`)))
}

func TestValue_TypedAccessors(t *testing.T) {
	n, err := Present(nil, "n", "42").AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	f, err := Present(nil, "f", "2.5").AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	b, err := Present(nil, "b", "true").AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := Present(nil, "s", `"Alpha"`).AsString()
	require.NoError(t, err)
	assert.Equal(t, "Alpha", s)
}

func TestValue_DecodeErrorNamesField(t *testing.T) {
	_, err := Present(nil, "age", `"old"`).AsInt64()
	require.Error(t, err)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "age", ce.Field)
	assert.Equal(t, "decode", ce.Op)
}

func TestValue_FromReply(t *testing.T) {
	assert.True(t, FromReply(nil, "a", "1").IsPresent())
	assert.True(t, FromReply(nil, "a", []byte("1")).IsPresent())
	assert.False(t, FromReply(nil, "a", nil).IsPresent())
}

func TestValue_MarshalJSON(t *testing.T) {
	out, err := Absent("a").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	out, err = Present(nil, "a", `{"x":1}`).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(out))

	out, err = Present(nil, "a", `not json`).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"not json"`, string(out))
}
