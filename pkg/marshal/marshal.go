// Package marshal 实现 marshal 二进制对象图格式的编解码。
//
// 格式为小端序的带类型码记录流，支持 0 到 4 五个版本：
//   - version >= 2 时浮点数以 8 字节 IEEE754 写出，否则写出十进制字符串；
//   - version >= 3 时启用引用表，对共享或自引用的对象只写一次；
//   - version >= 4 时元素少于 256 个的元组使用 1 字节长度的短记录。
//
// 解码器接受所有版本写出的数据，并对不可信输入做完整的边界检查。
package marshal

import (
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/pymarshal/pkg/metrics"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// Dumps 按给定版本编码 v。失败时不返回部分结果。
//
// 版本号不做范围校验，只作为各项格式行为的阈值。
func Dumps(v Value, version int, opts ...Option) ([]byte, error) {
	opt := buildOptions(opts)
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	e := newEncoder(buf, version, opt)
	if err := e.encode(v); err != nil {
		metrics.ObserveCodec(metrics.OpEncode, 0, 0, string(merr.KindOf(err)), err)
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	metrics.ObserveCodec(metrics.OpEncode, len(out), e.backRefs, "", nil)
	return out, nil
}

// Loads 解码 data 中的第一个对象，之后的多余字节被忽略。
func Loads(data []byte, opts ...Option) (Value, error) {
	v, _, err := LoadsPrefix(data, opts...)
	return v, err
}

// LoadsPrefix 解码 data 开头的一个对象，并返回其占用的字节数，
// 用于读取首尾相接的多个对象。
func LoadsPrefix(data []byte, opts ...Option) (Value, int, error) {
	d := newDecoder(data, buildOptions(opts))
	v, err := d.decode()
	if err != nil {
		metrics.ObserveCodec(metrics.OpDecode, 0, 0, string(merr.KindOf(err)), err)
		return nil, d.pos, err
	}
	metrics.ObserveCodec(metrics.OpDecode, d.pos, d.backRefs, "", nil)
	return v, d.pos, nil
}

// Dump 编码 v 并写入 w。
func Dump(v Value, w io.Writer, version int, opts ...Option) error {
	data, err := Dumps(v, version, opts...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return merr.WrapErrIoFailed("dump", err)
	}
	return nil
}

// Load 读取 r 的全部内容并解码其中的第一个对象。
func Load(r io.Reader, opts ...Option) (Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, merr.WrapErrIoFailed("load", err)
	}
	return Loads(data, opts...)
}
