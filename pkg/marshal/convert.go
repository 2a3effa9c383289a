package marshal

import (
	"math"
	"math/big"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// ValueOf 将常见的 Go 值转换为 Value。
//
// 支持 nil、bool、各类整数、*big.Int、浮点数、复数、string、[]byte、
// []any、map[string]any、map[any]any 以及已经是 Value 的值；
// 其余类型包装为 *Unknown。map 按键排序以保证编码结果稳定。
func ValueOf(x any) Value {
	return valueOf(x, 0)
}

func valueOf(x any, depth int) Value {
	if depth >= MaxDepth {
		return &Unknown{V: x}
	}
	switch v := x.(type) {
	case nil:
		return None
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int8:
		return Int(v)
	case int16:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case uint8:
		return Int(v)
	case uint16:
		return Int(v)
	case uint32:
		return Int(v)
	case uint:
		return uintValue(uint64(v))
	case uint64:
		return uintValue(v)
	case *big.Int:
		if v == nil {
			return None
		}
		return NewBigInt(v)
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	case complex64:
		return &Complex{Real: float64(real(v)), Imag: float64(imag(v))}
	case complex128:
		return &Complex{Real: real(v), Imag: imag(v)}
	case string:
		return NewStr(v)
	case []byte:
		return &Bytes{B: v}
	case []Value:
		return NewList(v...)
	case []any:
		return NewList(lo.Map(v, func(item any, _ int) Value { return valueOf(item, depth+1) })...)
	case []string:
		return NewList(lo.Map(v, func(item string, _ int) Value { return NewStr(item) })...)
	case map[string]any:
		d := newDictCap(len(v))
		keys := lo.Keys(v)
		sort.Strings(keys)
		for _, k := range keys {
			// 字符串键总是可哈希的。
			_ = d.Set(NewStr(k), valueOf(v[k], depth+1))
		}
		return d
	case map[any]any:
		type entry struct {
			key   Value
			hash  hashKey
			value any
		}
		entries := make([]entry, 0, len(v))
		for k, val := range v {
			key := valueOf(k, depth+1)
			h, err := keyOf(key)
			if err != nil {
				return &Unknown{V: x}
			}
			entries = append(entries, entry{key: key, hash: h, value: val})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].hash < entries[j].hash })
		d := newDictCap(len(entries))
		for _, e := range entries {
			_ = d.Set(e.key, valueOf(e.value, depth+1))
		}
		return d
	}
	return &Unknown{V: x}
}

func uintValue(v uint64) Value {
	if v <= math.MaxInt64 {
		return Int(v)
	}
	return &BigInt{V: new(big.Int).SetUint64(v)}
}

// Native 将 Value 转换为 Go 原生值，便于交给 JSON/YAML 等通用编码器。
//
// None 与 Null 转换为 nil；其余单例值转换为其名称字符串；
// tuple、list、set 转换为 []any；键全部为 str 的 dict 转换为 map[string]any，
// 否则转换为 map[any]any（键必须能转换为可比较的 Go 值）。
// 自引用结构无法转换，返回 ValueError。
func Native(v Value) (any, error) {
	return native(v, make(map[Value]struct{}))
}

func native(v Value, active map[Value]struct{}) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Sentinel:
		if x == None || x == Null {
			return nil, nil
		}
		return x.String(), nil
	case Bool:
		return bool(x), nil
	case Int:
		return int64(x), nil
	case Float:
		return float64(x), nil
	case *BigInt:
		if x.V.IsInt64() {
			return x.V.Int64(), nil
		}
		return new(big.Int).Set(x.V), nil
	case *Complex:
		return complex(x.Real, x.Imag), nil
	case *Str:
		return x.S, nil
	case *Bytes:
		return x.B, nil
	case *Code:
		return map[string]any{
			"filename":  x.Filename,
			"flags":     int64(x.Flags),
			"code":      x.Code,
			"firstline": int64(x.FirstLine),
			"linetable": x.LineTable,
		}, nil
	case *Unknown:
		return x.V, nil
	}

	if _, ok := active[v]; ok {
		return nil, merr.WrapErrMarshalUnsupported(v, "cannot convert recursive "+v.Type())
	}
	active[v] = struct{}{}
	defer delete(active, v)

	switch x := v.(type) {
	case *Tuple:
		return nativeItems(x.Items, active)
	case *List:
		return nativeItems(x.Items, active)
	case *Set:
		return nativeItems(x.items, active)
	case *Dict:
		allStr := lo.EveryBy(x.items, func(item Item) bool {
			_, ok := item.Key.(*Str)
			return ok
		})
		if allStr {
			m := make(map[string]any, x.Len())
			for _, item := range x.items {
				val, err := native(item.Value, active)
				if err != nil {
					return nil, err
				}
				m[item.Key.(*Str).S] = val
			}
			return m, nil
		}
		m := make(map[any]any, x.Len())
		for _, item := range x.items {
			key, err := nativeKey(item.Key)
			if err != nil {
				return nil, err
			}
			val, err := native(item.Value, active)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	}
	return nil, merr.WrapErrMarshalUnsupported(v, "cannot convert "+v.Type())
}

func nativeItems(items []Value, active map[Value]struct{}) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		val, err := native(item, active)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// nativeKey 转换字典键，容器键转换为其 64 位哈希的十六进制串以保证可比较。
func nativeKey(k Value) (any, error) {
	switch x := k.(type) {
	case *BigInt:
		if x.V.IsInt64() {
			return x.V.Int64(), nil
		}
		return x.V.String(), nil
	case *Bytes:
		return string(x.B), nil
	case *Tuple, *Set, *Code:
		h, err := keyOf(k)
		if err != nil {
			return nil, err
		}
		return strconv.FormatUint(uint64(h), 16), nil
	}
	return native(k, nil)
}
