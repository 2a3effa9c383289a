package serializer

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

func sample() map[string]any {
	return map[string]any{
		"name":  "pymarshal",
		"count": int64(3),
		"ratio": 2.5,
		"ok":    true,
		"none":  nil,
		"items": []any{int64(1), "x", []any{false}},
		"inner": map[string]any{"k": "v"},
	}
}

func TestRoundTripAllFormats(t *testing.T) {
	want := marshal.ValueOf(sample())
	for _, name := range []string{"marshal", "json", "cbor", "yaml", "proto"} {
		t.Run(name, func(t *testing.T) {
			s, err := ByName(name, marshal.Version)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())

			data, err := s.Marshal(sample())
			require.NoError(t, err)

			var got marshal.Value
			require.NoError(t, s.Unmarshal(data, &got))
			assert.True(t, marshal.Equal(want, got), "%s: %#v", name, got)
		})
	}
}

func TestMarshalSerializerKeepsValues(t *testing.T) {
	s := NewMarshalSerializer(-1)
	assert.Equal(t, marshal.Version, s.Version())

	l := marshal.NewList()
	l.Items = append(l.Items, l, &marshal.Bytes{B: []byte{0xff}})
	data, err := s.Marshal(l)
	require.NoError(t, err)

	var got marshal.Value
	require.NoError(t, s.Unmarshal(data, &got))
	gl, ok := got.(*marshal.List)
	require.True(t, ok)
	assert.Same(t, gl, gl.Items[0])

	var native any
	assert.Error(t, s.Unmarshal(data, &native))
}

func TestPortable(t *testing.T) {
	d := marshal.NewDict()
	require.NoError(t, d.Set(marshal.NewStr("big"), marshal.NewBigInt(new(big.Int).Lsh(big.NewInt(1), 80))))
	require.NoError(t, d.Set(marshal.NewStr("c"), &marshal.Complex{Real: 1.5, Imag: 2.5}))
	inner := marshal.NewDict()
	require.NoError(t, inner.Set(marshal.Int(7), marshal.NewStr("seven")))
	require.NoError(t, d.Set(marshal.NewStr("k"), inner))

	data, err := JSONSerializer{}.Marshal(d)
	require.NoError(t, err)
	var got any
	require.NoError(t, JSONSerializer{}.Unmarshal(data, &got))

	want := map[string]any{
		"big": "1208925819614629174706176",
		"c":   []any{1.5, 2.5},
		"k":   map[string]any{"7": "seven"},
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestJSONStable(t *testing.T) {
	data, err := JSONSerializer{}.Marshal(map[string]any{"b": int64(1), "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(data))
}

func TestCBORBytes(t *testing.T) {
	data, err := CBORSerializer{}.Marshal(&marshal.Bytes{B: []byte("raw")})
	require.NoError(t, err)
	var got any
	require.NoError(t, CBORSerializer{}.Unmarshal(data, &got))
	assert.Equal(t, []byte("raw"), got)
}

func TestProtoMessagePassthrough(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{"a": 1.0})
	require.NoError(t, err)
	data, err := ProtoSerializer{}.Marshal(msg)
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, ProtoSerializer{}.Unmarshal(data, out))
	assert.Empty(t, cmp.Diff(msg.AsMap(), out.AsMap()))
}

func TestErrors(t *testing.T) {
	_, err := ByName("xml", 4)
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	var s string
	err = JSONSerializer{}.Unmarshal([]byte(`1`), &s)
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	assert.Error(t, YAMLSerializer{}.Unmarshal([]byte("a: [1"), new(any)))

	l := marshal.NewList()
	l.Items = []marshal.Value{l}
	_, err = JSONSerializer{}.Marshal(l)
	assert.Error(t, err)

	var v marshal.Value
	err = NewMarshalSerializer(4).Unmarshal([]byte{'Q'}, &v)
	assert.Equal(t, merr.KindValue, merr.KindOf(err))
}
