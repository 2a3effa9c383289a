package marshal

import (
	"math"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	in := map[string]any{
		"name":    "pymarshal",
		"count":   3,
		"ratio":   0.5,
		"ok":      true,
		"nothing": nil,
		"tags":    []any{"a", uint8(2), []byte{1}},
		"big":     uint64(math.MaxUint64),
		"nested":  map[any]any{1: "x", "y": 2.5},
	}
	v := ValueOf(in)
	d, ok := v.(*Dict)
	require.True(t, ok)
	assert.Equal(t, len(in), d.Len())

	keys := make([]string, 0, d.Len())
	d.Range(func(k, _ Value) bool {
		keys = append(keys, k.(*Str).S)
		return true
	})
	assert.Equal(t, []string{"big", "count", "name", "nested", "nothing", "ok", "ratio", "tags"}, keys)

	huge, _ := d.Get(NewStr("big"))
	assert.IsType(t, &BigInt{}, huge)
	nothing, _ := d.Get(NewStr("nothing"))
	assert.Equal(t, None, nothing)

	assert.IsType(t, &Unknown{}, ValueOf(struct{}{}))
	assert.Equal(t, Int(-5), ValueOf(int8(-5)))
	assert.Equal(t, Float(float32(1.5)), ValueOf(float32(1.5)))
	assert.Equal(t, &Complex{Real: 1, Imag: 2}, ValueOf(complex(1, 2)))
	assert.Equal(t, Bool(true), ValueOf(Bool(true)))
}

func TestNative(t *testing.T) {
	d := NewDict()
	_ = d.Set(NewStr("list"), NewList(Int(1), Float(2.5), NewStr("s"), None, Ellipsis))
	_ = d.Set(NewStr("tuple"), NewTuple(Bool(true), &Bytes{B: []byte("b")}))
	_ = d.Set(NewStr("big"), &BigInt{V: new(big.Int).Lsh(big.NewInt(1), 80)})
	_ = d.Set(NewStr("small"), &BigInt{V: big.NewInt(7)})

	got, err := Native(d)
	require.NoError(t, err)
	want := map[string]any{
		"list":  []any{int64(1), 2.5, "s", nil, "Ellipsis"},
		"tuple": []any{true, []byte("b")},
		"big":   new(big.Int).Lsh(big.NewInt(1), 80),
		"small": int64(7),
	}
	opt := cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
	assert.Empty(t, cmp.Diff(want, got, opt))
}

func TestNativeNonStringKeys(t *testing.T) {
	d := NewDict()
	_ = d.Set(Int(1), NewStr("one"))
	_ = d.Set(NewTuple(Int(1), Int(2)), NewStr("pair"))
	got, err := Native(d)
	require.NoError(t, err)
	m, ok := got.(map[any]any)
	require.True(t, ok)
	assert.Equal(t, "one", m[int64(1)])
	assert.Len(t, m, 2)
}

func TestNativeRecursive(t *testing.T) {
	l := NewList()
	l.Items = []Value{l}
	_, err := Native(l)
	assert.Error(t, err)

	// 共享但不成环的结构可以转换。
	shared := NewList(Int(1))
	got, err := Native(NewList(shared, shared))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]any{[]any{int64(1)}, []any{int64(1)}}, got))
}

func TestValueOfRoundTrip(t *testing.T) {
	in := map[string]any{"a": []any{int64(1), "x", map[string]any{"b": nil}}}
	data, err := Dumps(ValueOf(in), Version)
	require.NoError(t, err)
	v, err := Loads(data)
	require.NoError(t, err)
	got, err := Native(v)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(in, got))
}
