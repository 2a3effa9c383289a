package serializer

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("serializer: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("serializer: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORSerializer 使用 fxamacker/cbor 的确定性编码。
// 字节串保持为 CBOR 字节串。
type CBORSerializer struct{}

// 编译期断言：确保 CBORSerializer 实现了 Serializer 接口。
var _ Serializer = (*CBORSerializer)(nil)

func (CBORSerializer) Marshal(v any) ([]byte, error) {
	native, err := toPortable(v)
	if err != nil {
		return nil, errors.Wrap(err, "serializer: cbor marshal")
	}
	return cborEnc.Marshal(native)
}

func (CBORSerializer) Unmarshal(data []byte, v any) error {
	var native any
	if err := cborDec.Unmarshal(data, &native); err != nil {
		return errors.Wrap(err, "serializer: cbor unmarshal")
	}
	return assign(v, native)
}

func (CBORSerializer) Name() string { return "cbor" }
