package marshal

import (
	"bytes"
	"math"
	"math/big"

	"github.com/lk2023060901/pymarshal/pkg/util/typeutil"
)

type visitPair struct {
	a, b Value
}

// equalState 为一次 Equal 调用的状态。visiting 为正在比较的容器对，
// proven 为已证明相等的容器对；共享子结构因此只比较一次。
// provenLog 按加入顺序记录 proven，用于回滚。
type equalState struct {
	visiting  typeutil.Set[visitPair]
	proven    typeutil.Set[visitPair]
	provenLog []visitPair
	hasher    *hasher
}

// Equal 判断两个值是否结构相等。
//
// 数值跨类型比较（1 == True == 1.0 == BigInt(1)），set 与 frozenset 可以相等，
// tuple 与 list 不相等。对正在比较中的一对容器视为相等，因此自引用结构也能终止。
func Equal(a, b Value) bool {
	st := &equalState{
		visiting: typeutil.NewSet[visitPair](),
		proven:   typeutil.NewSet[visitPair](),
		hasher:   newHasher(),
	}
	return st.equal(a, b)
}

func (st *equalState) equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if isNumber(a) && isNumber(b) {
		return numberEqual(a, b)
	}

	switch x := a.(type) {
	case Sentinel:
		y, ok := b.(Sentinel)
		return ok && x == y
	case *Str:
		y, ok := b.(*Str)
		return ok && x.S == y.S
	case *Bytes:
		y, ok := b.(*Bytes)
		return ok && bytes.Equal(x.B, y.B)
	case *Code:
		y, ok := b.(*Code)
		return ok && x.Filename == y.Filename && x.Flags == y.Flags &&
			x.FirstLine == y.FirstLine && bytes.Equal(x.Code, y.Code) &&
			bytes.Equal(x.LineTable, y.LineTable)
	case *Unknown:
		return a == b
	}

	if a == b {
		return true
	}
	pair := visitPair{a, b}
	if st.proven.Contain(pair) || st.visiting.Contain(pair) {
		return true
	}
	st.visiting.Insert(pair)
	eq := st.containerEqual(a, b)
	st.visiting.Remove(pair)
	// 相等的结论可能依赖仍在比较中的祖先对；祖先不等时整次比较返回 false，
	// 只有桶内候选键的比较会吞掉 false，由 keyEqual 回滚。
	if eq {
		st.proven.Insert(pair)
		st.provenLog = append(st.provenLog, pair)
	}
	return eq
}

func (st *equalState) containerEqual(a, b Value) bool {
	switch x := a.(type) {
	case *Tuple:
		y, ok := b.(*Tuple)
		return ok && st.itemsEqual(x.Items, y.Items)
	case *List:
		y, ok := b.(*List)
		return ok && st.itemsEqual(x.Items, y.Items)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, item := range x.items {
			key, err := st.hasher.key(item.Key)
			if err != nil {
				return false
			}
			i, found := y.find(key, item.Key, st.keyEqual)
			if !found || !st.equal(item.Value, y.items[i].Value) {
				return false
			}
		}
		return true
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, item := range x.items {
			key, err := st.hasher.key(item)
			if err != nil || !y.find(key, item, st.keyEqual) {
				return false
			}
		}
		return true
	}
	return false
}

// keyEqual 与包级 keyEqual 相同，但复用本次比较的状态。
// 候选键不相等时撤销比较过程中得出的相等结论。
func (st *equalState) keyEqual(a, b Value) bool {
	if fa, ok := a.(Float); ok {
		if fb, ok := b.(Float); ok && math.IsNaN(float64(fa)) {
			return math.Float64bits(float64(fa)) == math.Float64bits(float64(fb))
		}
	}
	if a == b {
		return true
	}
	mark := len(st.provenLog)
	if st.equal(a, b) {
		return true
	}
	st.proven.Remove(st.provenLog[mark:]...)
	st.provenLog = st.provenLog[:mark]
	return false
}

func (st *equalState) itemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !st.equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func isNumber(v Value) bool {
	switch x := v.(type) {
	case Bool, Int, Float:
		return true
	case *BigInt:
		return x != nil && x.V != nil
	case *Complex:
		return x != nil
	}
	return false
}

func numberEqual(a, b Value) bool {
	ca, aComplex := a.(*Complex)
	cb, bComplex := b.(*Complex)
	switch {
	case aComplex && bComplex:
		return ca.Real == cb.Real && ca.Imag == cb.Imag
	case aComplex:
		return ca.Imag == 0 && numberEqual(Float(ca.Real), b)
	case bComplex:
		return cb.Imag == 0 && numberEqual(a, Float(cb.Real))
	}

	fa, aFloat := a.(Float)
	fb, bFloat := b.(Float)
	switch {
	case aFloat && bFloat:
		return fa == fb
	case aFloat:
		return floatEqualsInt(float64(fa), toBig(b))
	case bFloat:
		return floatEqualsInt(float64(fb), toBig(a))
	}
	return toBig(a).Cmp(toBig(b)) == 0
}

func floatEqualsInt(f float64, i *big.Int) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	return new(big.Float).SetInt(i).Cmp(big.NewFloat(f)) == 0
}

// toBig 将整数类的值转换为 *big.Int。
func toBig(v Value) *big.Int {
	switch x := v.(type) {
	case Bool:
		if x {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	case Int:
		return big.NewInt(int64(x))
	case *BigInt:
		return x.V
	}
	return new(big.Int)
}
