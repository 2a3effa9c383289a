package marshal

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/cespare/xxhash/v2"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
	"github.com/lk2023060901/pymarshal/pkg/util/typeutil"
)

// hashKey 为可哈希值的 64 位哈希。相等的值（包括跨数值类型相等，
// 如 1、True、1.0）哈希相同；哈希相同的键再按 keyEqual 区分。
type hashKey uint64

// hasher 按指针缓存 tuple 与 frozenset 的哈希，共享子结构只计算一次，
// 因此哈希一个值的开销与其中不同节点的个数成正比。
//
// 解码时一个 hasher 贯穿整次调用；仍在填充中的 frozenset 记录在 pending 中，
// 其哈希以及包含它的容器的哈希都不进入缓存。
type hasher struct {
	memo    map[Value]hashKey
	pending typeutil.Set[*Set]
}

func newHasher() *hasher {
	return &hasher{memo: make(map[Value]hashKey)}
}

func keyOf(v Value) (hashKey, error) {
	return newHasher().key(v)
}

func (h *hasher) key(v Value) (hashKey, error) {
	k, _, err := h.hash(v, 0)
	return k, err
}

func (h *hasher) begin(s *Set) {
	if h.pending == nil {
		h.pending = typeutil.NewSet[*Set]()
	}
	h.pending.Insert(s)
}

func (h *hasher) end(s *Set) {
	h.pending.Remove(s)
}

// hash 返回 v 的哈希，stable 为 false 表示结果依赖仍在填充的集合，不可缓存。
func (h *hasher) hash(v Value, depth int) (k hashKey, stable bool, err error) {
	if depth >= MaxDepth {
		return 0, false, merr.WrapErrMarshalUnsupported(v, "maximum recursion depth exceeded while hashing")
	}
	switch x := v.(type) {
	case Sentinel:
		if x == Null {
			return 0, false, merr.WrapErrMarshalUnsupported(v, "NULL is not hashable")
		}
		d := newDigest('z')
		d.writeByte(byte(x))
		return d.sum(), true, nil
	case Bool:
		if x {
			return intHash(1), true, nil
		}
		return intHash(0), true, nil
	case Int:
		return intHash(int64(x)), true, nil
	case Float:
		return floatHash(float64(x)), true, nil
	case *BigInt:
		if x == nil || x.V == nil {
			return 0, false, unhashable(v)
		}
		return bigHash(x.V), true, nil
	case *Complex:
		if x == nil {
			return 0, false, unhashable(v)
		}
		if x.Imag == 0 {
			return floatHash(x.Real), true, nil
		}
		d := newDigest('c')
		d.writeUint64(math.Float64bits(x.Real))
		d.writeUint64(math.Float64bits(x.Imag))
		return d.sum(), true, nil
	case *Str:
		if x == nil {
			return 0, false, unhashable(v)
		}
		d := newDigest('u')
		d.d.WriteString(x.S)
		return d.sum(), true, nil
	case *Bytes:
		if x == nil {
			return 0, false, unhashable(v)
		}
		d := newDigest('b')
		d.d.Write(x.B)
		return d.sum(), true, nil
	case *Tuple:
		if x == nil {
			return 0, false, unhashable(v)
		}
		if k, ok := h.memo[x]; ok {
			return k, true, nil
		}
		stable = true
		d := newDigest('(')
		d.writeUint64(uint64(len(x.Items)))
		for _, item := range x.Items {
			ik, istable, err := h.hash(item, depth+1)
			if err != nil {
				return 0, false, err
			}
			stable = stable && istable
			d.writeUint64(uint64(ik))
		}
		k = d.sum()
		if stable {
			h.memo[x] = k
		}
		return k, stable, nil
	case *Set:
		if x == nil || !x.Frozen {
			return 0, false, unhashable(v)
		}
		if k, ok := h.memo[x]; ok {
			return k, true, nil
		}
		stable = !h.pending.Contain(x)
		// 元素哈希混合后求和，与元素顺序无关。
		var acc uint64
		for _, item := range x.items {
			ik, istable, err := h.hash(item, depth+1)
			if err != nil {
				return 0, false, err
			}
			stable = stable && istable
			acc += mix(uint64(ik))
		}
		d := newDigest('F')
		d.writeUint64(uint64(len(x.items)))
		d.writeUint64(acc)
		k = d.sum()
		if stable {
			h.memo[x] = k
		}
		return k, stable, nil
	case *Code:
		if x == nil {
			return 0, false, unhashable(v)
		}
		d := newDigest('C')
		d.writeBlob([]byte(x.Filename))
		d.writeUint64(uint64(x.Flags))
		d.writeBlob(x.Code)
		d.writeUint64(uint64(int64(x.FirstLine)))
		d.writeBlob(x.LineTable)
		return d.sum(), true, nil
	}
	return 0, false, unhashable(v)
}

// keyEqual 判断两个键是否指同一项。NaN 按位模式比较，
// 同一个 NaN 可以作为键再次取回。
func keyEqual(a, b Value) bool {
	if fa, ok := a.(Float); ok {
		if fb, ok := b.(Float); ok && math.IsNaN(float64(fa)) {
			return math.Float64bits(float64(fa)) == math.Float64bits(float64(fb))
		}
	}
	return a == b || Equal(a, b)
}

type digest struct {
	d       *xxhash.Digest
	scratch [8]byte
}

func newDigest(kind byte) *digest {
	d := &digest{d: xxhash.New()}
	d.writeByte(kind)
	return d
}

func (d *digest) writeByte(b byte) {
	d.scratch[0] = b
	d.d.Write(d.scratch[:1])
}

func (d *digest) writeUint64(u uint64) {
	binary.LittleEndian.PutUint64(d.scratch[:], u)
	d.d.Write(d.scratch[:])
}

func (d *digest) writeBlob(b []byte) {
	d.writeUint64(uint64(len(b)))
	d.d.Write(b)
}

func (d *digest) sum() hashKey {
	return hashKey(d.d.Sum64())
}

func intHash(i int64) hashKey {
	d := newDigest('i')
	d.writeUint64(uint64(i))
	return d.sum()
}

func bigHash(b *big.Int) hashKey {
	if b.IsInt64() {
		return intHash(b.Int64())
	}
	d := newDigest('n')
	d.writeByte(byte(b.Sign() + 1))
	d.d.Write(b.Bytes())
	return d.sum()
}

// floatHash 将整数值的浮点数归一到整数哈希，其余按位模式区分。
func floatHash(f float64) hashKey {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		if f >= math.MinInt64 && f < math.MaxInt64 {
			return intHash(int64(f))
		}
		i, _ := big.NewFloat(f).Int(nil)
		return bigHash(i)
	}
	d := newDigest('f')
	d.writeUint64(math.Float64bits(f))
	return d.sum()
}

// mix 为 splitmix64 终结函数，避免相近的元素哈希求和后互相抵消。
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func unhashable(v Value) error {
	name := "NULL"
	if v != nil {
		name = v.Type()
	}
	return merr.WrapErrMarshalUnsupported(v, "unhashable type: "+name)
}
