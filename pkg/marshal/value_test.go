package marshal

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

func TestDictOrderAndReplace(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Set(Int(1), NewStr("one")))
	require.NoError(t, d.Set(NewStr("k"), None))
	require.NoError(t, d.Set(Float(1), NewStr("uno")))
	require.NoError(t, d.Set(Bool(true), NewStr("true")))
	assert.Equal(t, 2, d.Len())

	items := d.Items()
	assert.Equal(t, Int(1), items[0].Key)
	assert.Equal(t, "true", items[0].Value.(*Str).S)

	v, ok := d.Get(&BigInt{V: big.NewInt(1)})
	assert.True(t, ok)
	assert.Equal(t, "true", v.(*Str).S)

	_, ok = d.Get(NewList())
	assert.False(t, ok)

	var keys []Value
	d.Range(func(k, _ Value) bool {
		keys = append(keys, k)
		return false
	})
	assert.Len(t, keys, 1)
}

func TestZeroValueContainers(t *testing.T) {
	var d Dict
	require.NoError(t, d.Set(NewStr("a"), Int(1)))
	assert.Equal(t, 1, d.Len())

	var s Set
	require.NoError(t, s.Add(Int(1)))
	assert.True(t, s.Contains(Float(1)))
}

func TestUnhashable(t *testing.T) {
	d := NewDict()
	for _, k := range []Value{NewList(), NewDict(), &Set{}, &Unknown{}, Null, NewTuple(NewList())} {
		err := d.Set(k, None)
		require.Error(t, err)
		assert.Equal(t, merr.KindValue, merr.KindOf(err))
	}

	frozen, err := NewSet(true, Int(2), Int(1))
	require.NoError(t, err)
	require.NoError(t, d.Set(frozen, None))
	other, _ := NewSet(true, Int(1), Int(2))
	_, ok := d.Get(other)
	assert.True(t, ok)

	_, err = NewSet(false, NewList())
	assert.Error(t, err)
}

func TestRecursiveTupleKey(t *testing.T) {
	tup := NewTuple(Int(1))
	tup.Items = append(tup.Items, tup)
	_, err := keyOf(tup)
	assert.Equal(t, merr.KindValue, merr.KindOf(err))
}

func TestKeyNormalization(t *testing.T) {
	same := [][]Value{
		{Int(1), Bool(true), Float(1), &BigInt{V: big.NewInt(1)}, &Complex{Real: 1}},
		{Int(0), Float(math.Copysign(0, -1)), Bool(false)},
		{&BigInt{V: new(big.Int).Lsh(big.NewInt(1), 70)}, Float(math.Ldexp(1, 70))},
		{NewStr("a"), &Str{S: "a", Interned: true}},
		{NewTuple(Int(1), NewStr("x")), NewTuple(Float(1), NewStr("x"))},
	}
	for _, group := range same {
		first, err := keyOf(group[0])
		require.NoError(t, err)
		for _, v := range group[1:] {
			k, err := keyOf(v)
			require.NoError(t, err)
			assert.Equal(t, first, k, "%#v", v)
		}
	}

	different := [][2]Value{
		{NewStr("a"), &Bytes{B: []byte("a")}},
		{Float(1.5), Int(1)},
		{NewTuple(NewStr("ab"), NewStr("c")), NewTuple(NewStr("a"), NewStr("bc"))},
		{&Complex{Real: 1, Imag: 1}, Int(1)},
		{None, Ellipsis},
	}
	for _, pair := range different {
		a, err := keyOf(pair[0])
		require.NoError(t, err)
		b, err := keyOf(pair[1])
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(Bool(true), &BigInt{V: big.NewInt(1)}))
	assert.True(t, Equal(&Complex{Real: 2}, Int(2)))
	assert.False(t, Equal(&Complex{Real: 2, Imag: 1}, Int(2)))
	assert.False(t, Equal(Float(math.NaN()), Float(math.NaN())))
	assert.False(t, Equal(Float(math.Inf(1)), Int(1)))
	assert.False(t, Equal(NewTuple(Int(1)), NewList(Int(1))))
	assert.False(t, Equal(NewStr("a"), &Bytes{B: []byte("a")}))
	assert.True(t, Equal(nil, Null))
	assert.False(t, Equal(None, Null))

	set, _ := NewSet(false, Int(1))
	frozen, _ := NewSet(true, Float(1))
	assert.True(t, Equal(set, frozen))

	a := NewList()
	a.Items = []Value{a}
	b := NewList()
	b.Items = []Value{NewList(b)}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, NewList(NewList())))

	u := &Unknown{V: 1}
	assert.True(t, Equal(u, u))
	assert.False(t, Equal(u, &Unknown{V: 1}))
}

func TestBigDigits(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(1),
		big.NewInt(digitMask),
		big.NewInt(digitBase),
		new(big.Int).Lsh(big.NewInt(1), 64),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
	}
	for _, v := range cases {
		digits := bigDigits(v)
		for _, d := range digits {
			assert.LessOrEqual(t, d, uint16(digitMask))
		}
		assert.NotZero(t, digits[len(digits)-1])
		assert.Equal(t, 0, v.Cmp(bigFromDigits(digits, false)), v.String())
		assert.Equal(t, 0, new(big.Int).Neg(v).Cmp(bigFromDigits(digits, true)))
	}
	assert.Empty(t, bigDigits(new(big.Int)))
	assert.Equal(t, []uint16{0, 1}, bigDigits(big.NewInt(digitBase)))
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "list", TagList.String())
	assert.Equal(t, "tag(0x51)", Tag('Q').String())
	assert.True(t, TagShortASCII.Known())
	assert.False(t, Tag('Q').Known())
	assert.Equal(t, "Ellipsis", Ellipsis.String())
	assert.Equal(t, "frozenset", (&Set{Frozen: true}).Type())
}

func TestEqualSharedStructure(t *testing.T) {
	chain := func(k int, leaf Value) *Tuple {
		tup := NewTuple(leaf)
		for i := 0; i < k; i++ {
			tup = NewTuple(tup, tup)
		}
		return tup
	}
	assert.True(t, Equal(chain(80, Int(1)), chain(80, Float(1))))
	assert.False(t, Equal(chain(80, Int(1)), chain(80, Int(2))))

	// 共享的 frozenset 作为元素和字典键时同样只比较一次。
	setChain := func(k int) *Set {
		s, _ := NewSet(true, Int(0))
		for i := 0; i < k; i++ {
			s, _ = NewSet(true, s, NewTuple(s))
		}
		return s
	}
	assert.True(t, Equal(setChain(60), setChain(60)))

	a, b := NewDict(), NewDict()
	require.NoError(t, a.Set(chain(60, Int(1)), setChain(40)))
	require.NoError(t, b.Set(chain(60, Int(1)), setChain(40)))
	assert.True(t, Equal(a, b))
}

func TestKeyHashingSharedStructure(t *testing.T) {
	tup := NewTuple(Int(1))
	for i := 0; i < 200; i++ {
		tup = NewTuple(tup, tup)
	}
	h := newHasher()
	_, err := h.key(tup)
	require.NoError(t, err)
	// 每个不同的 tuple 节点只哈希一次。
	assert.Len(t, h.memo, 201)

	s, err := NewSet(false, tup)
	require.NoError(t, err)
	assert.True(t, s.Contains(tup))
}
