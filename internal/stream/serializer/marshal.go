package serializer

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/pymarshal/pkg/marshal"
)

// MarshalSerializer 使用 marshal 二进制格式编解码。
type MarshalSerializer struct {
	version int
	opts    []marshal.Option
}

// 编译期断言：确保 MarshalSerializer 实现了 Serializer 接口。
var _ Serializer = (*MarshalSerializer)(nil)

// NewMarshalSerializer 创建按 version 写出的序列化器，version 为负时使用 marshal.Version。
func NewMarshalSerializer(version int, opts ...marshal.Option) *MarshalSerializer {
	if version < 0 {
		version = marshal.Version
	}
	return &MarshalSerializer{version: version, opts: opts}
}

func (s *MarshalSerializer) Version() int {
	return s.version
}

func (s *MarshalSerializer) Marshal(v any) ([]byte, error) {
	data, err := marshal.Dumps(toValue(v), s.version, s.opts...)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: marshal")
	}
	return data, nil
}

// Unmarshal 解码 data。目标为 *any 时得到 marshal.Native 的结果。
func (s *MarshalSerializer) Unmarshal(data []byte, v any) error {
	val, err := marshal.Loads(data, s.opts...)
	if err != nil {
		return errors.Wrap(err, "serializer: unmarshal")
	}
	if dst, ok := v.(*marshal.Value); ok {
		*dst = val
		return nil
	}
	native, err := marshal.Native(val)
	if err != nil {
		return errors.Wrap(err, "serializer: unmarshal")
	}
	return assign(v, native)
}

func (s *MarshalSerializer) Name() string { return "marshal" }
