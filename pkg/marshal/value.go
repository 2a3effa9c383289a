package marshal

import (
	"math/big"
	"strconv"
)

// Value 是编解码器处理的值的封闭和类型。
//
// 原子值（Sentinel、Bool、Int、Float）为值类型，不参与引用去重；
// 其余变体均以指针形式出现，指针本身即对象身份，引用表按身份去重。
type Value interface {
	// Type 返回值的类型名，用于错误信息和日志。
	Type() string

	isValue()
}

// Sentinel 为无负载的单例值。
type Sentinel uint8

const (
	// Null 表示“缺失”，仅用作字典终止符或未知值的解码结果。
	Null Sentinel = iota
	None
	NoValue
	StopIteration
	Ellipsis
)

var sentinelNames = [...]string{
	Null:          "NULL",
	None:          "None",
	NoValue:       "NoValue",
	StopIteration: "StopIteration",
	Ellipsis:      "Ellipsis",
}

func (s Sentinel) String() string {
	if int(s) < len(sentinelNames) {
		return sentinelNames[s]
	}
	return "Sentinel(" + strconv.Itoa(int(s)) + ")"
}

func (s Sentinel) Type() string { return s.String() }

type Bool bool

func (Bool) Type() string { return "bool" }

// Int 为机器字长整数。超出 int32 范围时按 64 位记录写出。
type Int int64

func (Int) Type() string { return "int" }

type Float float64

func (Float) Type() string { return "float" }

// BigInt 为任意精度整数。
type BigInt struct {
	V *big.Int
}

func NewBigInt(v *big.Int) *BigInt {
	return &BigInt{V: new(big.Int).Set(v)}
}

func (*BigInt) Type() string { return "int" }

type Complex struct {
	Real float64
	Imag float64
}

func (*Complex) Type() string { return "complex" }

type Bytes struct {
	B []byte
}

func (*Bytes) Type() string { return "bytes" }

// Str 为 Unicode 文本，S 必须是合法的 UTF-8。
type Str struct {
	S        string
	Interned bool
}

func NewStr(s string) *Str { return &Str{S: s} }

func (*Str) Type() string { return "str" }

type Tuple struct {
	Items []Value
}

func NewTuple(items ...Value) *Tuple { return &Tuple{Items: items} }

func (*Tuple) Type() string { return "tuple" }

type List struct {
	Items []Value
}

func NewList(items ...Value) *List { return &List{Items: items} }

func (*List) Type() string { return "list" }

// Item 为字典中的一个键值对。
type Item struct {
	Key   Value
	Value Value
}

// Dict 为保持插入顺序的映射，键按相等性和哈希去重。
type Dict struct {
	items []Item
	index map[hashKey][]int
}

func NewDict() *Dict {
	return newDictCap(0)
}

func newDictCap(n int) *Dict {
	return &Dict{
		items: make([]Item, 0, n),
		index: make(map[hashKey][]int, n),
	}
}

func (*Dict) Type() string { return "dict" }

// Set 写入键值对。已存在的键保留原位置和原键对象，仅替换值。
// 键不可哈希时返回 ValueError。
func (d *Dict) Set(k, v Value) error {
	return d.set(newHasher(), k, v)
}

func (d *Dict) set(h *hasher, k, v Value) error {
	key, err := h.key(k)
	if err != nil {
		return err
	}
	if i, ok := d.find(key, k, keyEqual); ok {
		d.items[i].Value = v
		return nil
	}
	if d.index == nil {
		d.index = make(map[hashKey][]int)
	}
	d.index[key] = append(d.index[key], len(d.items))
	d.items = append(d.items, Item{Key: k, Value: v})
	return nil
}

// find 在哈希为 key 的桶中查找与 k 相等的键。
func (d *Dict) find(key hashKey, k Value, eq func(a, b Value) bool) (int, bool) {
	for _, i := range d.index[key] {
		if eq(d.items[i].Key, k) {
			return i, true
		}
	}
	return 0, false
}

func (d *Dict) Get(k Value) (Value, bool) {
	key, err := keyOf(k)
	if err != nil {
		return nil, false
	}
	i, ok := d.find(key, k, keyEqual)
	if !ok {
		return nil, false
	}
	return d.items[i].Value, true
}

func (d *Dict) Len() int { return len(d.items) }

// Items 按插入顺序返回键值对的副本。
func (d *Dict) Items() []Item {
	return append([]Item(nil), d.items...)
}

// Range 按插入顺序遍历，回调返回 false 时停止。
func (d *Dict) Range(f func(k, v Value) bool) {
	for _, item := range d.items {
		if !f(item.Key, item.Value) {
			return
		}
	}
}

// Set 为 set/frozenset，元素按插入顺序保存，成员关系按哈希和相等性判断。
type Set struct {
	Frozen bool

	items []Value
	index map[hashKey][]int
}

func NewSet(frozen bool, items ...Value) (*Set, error) {
	s := newSetCap(frozen, len(items))
	h := newHasher()
	for _, item := range items {
		if err := s.add(h, item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newSetCap(frozen bool, n int) *Set {
	return &Set{
		Frozen: frozen,
		items:  make([]Value, 0, n),
		index:  make(map[hashKey][]int, n),
	}
}

func (s *Set) Type() string {
	if s.Frozen {
		return "frozenset"
	}
	return "set"
}

// Add 加入一个元素，重复元素被忽略。元素不可哈希时返回 ValueError。
func (s *Set) Add(v Value) error {
	return s.add(newHasher(), v)
}

func (s *Set) add(h *hasher, v Value) error {
	key, err := h.key(v)
	if err != nil {
		return err
	}
	if s.find(key, v, keyEqual) {
		return nil
	}
	if s.index == nil {
		s.index = make(map[hashKey][]int)
	}
	s.index[key] = append(s.index[key], len(s.items))
	s.items = append(s.items, v)
	return nil
}

func (s *Set) find(key hashKey, v Value, eq func(a, b Value) bool) bool {
	for _, i := range s.index[key] {
		if eq(s.items[i], v) {
			return true
		}
	}
	return false
}

func (s *Set) Contains(v Value) bool {
	key, err := keyOf(v)
	if err != nil {
		return false
	}
	return s.find(key, v, keyEqual)
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) Items() []Value {
	return append([]Value(nil), s.items...)
}

// Code 为本运行时的代码对象记录。
type Code struct {
	Filename  string
	Flags     uint32
	Code      []byte
	FirstLine int32
	LineTable []byte
}

func (*Code) Type() string { return "code" }

// Unknown 包装无法表示的值，编码为单个未知标记，解码为 Null。
type Unknown struct {
	V any
}

func (*Unknown) Type() string { return "unknown" }

func (Sentinel) isValue() {}
func (Bool) isValue()     {}
func (Int) isValue()      {}
func (Float) isValue()    {}
func (*BigInt) isValue()  {}
func (*Complex) isValue() {}
func (*Bytes) isValue()   {}
func (*Str) isValue()     {}
func (*Tuple) isValue()   {}
func (*List) isValue()    {}
func (*Dict) isValue()    {}
func (*Set) isValue()     {}
func (*Code) isValue()    {}
func (*Unknown) isValue() {}

// IsNull 判断 v 是否为 Null（nil 接口视同 Null）。
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	s, ok := v.(Sentinel)
	return ok && s == Null
}
