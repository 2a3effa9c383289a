package compressor

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4/v4"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// LZ4Compressor 使用 pierrec/lz4 的帧格式，解压时无需预先知道原始长度。
type LZ4Compressor struct {
	level lz4.CompressionLevel
	limit uint32
}

// 编译期断言：确保 LZ4Compressor 实现了 Compressor 接口。
var _ Compressor = (*LZ4Compressor)(nil)

// NewLZ4Compressor 创建 LZ4Compressor，maxDecodedSize 为 0 时使用 DefaultMaxDecodedSize。
func NewLZ4Compressor(maxDecodedSize uint32) *LZ4Compressor {
	return &LZ4Compressor{level: lz4.Fast, limit: decodedLimit(maxDecodedSize)}
}

func (c *LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	return buf.Bytes(), nil
}

func (c *LZ4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	r := io.LimitReader(lz4.NewReader(bytes.NewReader(src)), int64(c.limit)+1)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	if uint64(buf.Len()) > uint64(c.limit) {
		return nil, merr.WrapErrStreamDecodedTooLarge(c.limit)
	}
	return buf.Bytes(), nil
}
