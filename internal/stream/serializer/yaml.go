package serializer

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// YAMLSerializer 使用 gopkg.in/yaml.v3 编解码。
type YAMLSerializer struct{}

// 编译期断言：确保 YAMLSerializer 实现了 Serializer 接口。
var _ Serializer = (*YAMLSerializer)(nil)

func (YAMLSerializer) Marshal(v any) ([]byte, error) {
	native, err := toPortable(v)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: yaml marshal")
	}
	return yaml.Marshal(native)
}

func (YAMLSerializer) Unmarshal(data []byte, v any) error {
	var native any
	if err := yaml.Unmarshal(data, &native); err != nil {
		return errors.Wrap(err, "serializer: yaml unmarshal")
	}
	return assign(v, native)
}

func (YAMLSerializer) Name() string { return "yaml" }
