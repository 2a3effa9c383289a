package serializer

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoSerializer 将值编码为 google.protobuf.Value 的二进制形式。
//
// 注意：protobuf 的数值均为 double，字节串以 base64 字符串保存，
// 因此解码结果中的整数为 float64。
type ProtoSerializer struct{}

// 编译期断言：确保 ProtoSerializer 实现了 Serializer 接口。
var _ Serializer = (*ProtoSerializer)(nil)

func (ProtoSerializer) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}
	native, err := toPortable(v)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: proto marshal")
	}
	pv, err := structpb.NewValue(native)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: proto marshal")
	}
	return proto.Marshal(pv)
}

func (ProtoSerializer) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}
	pv := &structpb.Value{}
	if err := proto.Unmarshal(data, pv); err != nil {
		return errors.Wrap(err, "serializer: proto unmarshal")
	}
	return assign(v, pv.AsInterface())
}

func (ProtoSerializer) Name() string { return "proto" }
