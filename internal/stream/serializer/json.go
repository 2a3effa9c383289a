package serializer

import (
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// jsonAPI 解码时保留整数精度，输出按键排序以保证结果稳定。
var jsonAPI = sonic.Config{
	UseInt64:    true,
	SortMapKeys: true,
}.Froze()

// JSONSerializer 使用 bytedance/sonic 实现 JSON 编解码。
type JSONSerializer struct{}

// 编译期断言：确保 JSONSerializer 实现了 Serializer 接口。
var _ Serializer = (*JSONSerializer)(nil)

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	native, err := toPortable(v)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: json marshal")
	}
	return jsonAPI.Marshal(native)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	var native any
	if err := jsonAPI.Unmarshal(data, &native); err != nil {
		return errors.Wrap(err, "serializer: json unmarshal")
	}
	return assign(v, native)
}

func (JSONSerializer) Name() string { return "json" }
