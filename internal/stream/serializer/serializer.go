package serializer

import (
	"fmt"
	"math/big"

	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// Serializer 抽象了“值 <-> 字节流”的序列化能力。
//
// Marshal 接受 marshal.Value 或 marshal.ValueOf 支持的 Go 值；
// Unmarshal 的目标为 *marshal.Value 或 *any。
type Serializer interface {
	// Marshal 将值编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到 v 指向的位置。
	Unmarshal(data []byte, v any) error

	// Name 返回格式名，例如 marshal、json。
	Name() string
}

// ByName 按格式名返回序列化器，未知格式返回 ErrParameterInvalid。
func ByName(name string, version int) (Serializer, error) {
	switch name {
	case "", "marshal":
		return NewMarshalSerializer(version), nil
	case "json":
		return JSONSerializer{}, nil
	case "cbor":
		return CBORSerializer{}, nil
	case "yaml", "yml":
		return YAMLSerializer{}, nil
	case "proto":
		return ProtoSerializer{}, nil
	}
	return nil, merr.WrapErrParameterInvalidMsg("unknown serializer format %q", name)
}

// toValue 将输入统一为 marshal.Value。
func toValue(v any) marshal.Value {
	if mv, ok := v.(marshal.Value); ok {
		return mv
	}
	return marshal.ValueOf(v)
}

// toPortable 将输入转换为通用文本格式可以表达的原生值：
// 非字符串键转换为其文本形式，大整数转换为十进制字符串，复数转换为 [real, imag]。
func toPortable(v any) (any, error) {
	native, err := marshal.Native(toValue(v))
	if err != nil {
		return nil, err
	}
	return portable(native), nil
}

func portable(x any) any {
	switch v := x.(type) {
	case *big.Int:
		return v.String()
	case complex128:
		return []any{real(v), imag(v)}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = portable(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = portable(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = portable(item)
		}
		return out
	}
	return x
}

// assign 将解码得到的原生值写入目标。
func assign(dst any, native any) error {
	switch d := dst.(type) {
	case *marshal.Value:
		*d = marshal.ValueOf(native)
		return nil
	case *any:
		*d = native
		return nil
	}
	return merr.WrapErrParameterInvalid("*marshal.Value or *any", fmt.Sprintf("%T", dst))
}
