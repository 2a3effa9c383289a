package compressor

import (
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// Compressor 抽象了“单次压缩/解压”能力。
type Compressor interface {
	// Compress 将 src 压缩到 dst。
	//
	// dst 一般可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量；
	// 返回值 packet 为压缩后的完整数据。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将压缩数据 src 解压到 dst。
	//
	// 行为约定与 Compress 对称：src 必须是 Compress 的输出。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// Type 为帧头中记录的压缩算法编号，写入后不可更改。
type Type uint8

const (
	TypeNone Type = 0
	TypeZstd Type = 1
	TypeLZ4  Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeZstd:
		return "zstd"
	case TypeLZ4:
		return "lz4"
	}
	return "unknown"
}

// ParseType 解析配置中的压缩算法名，空串视为 none。
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return TypeNone, nil
	case "zstd":
		return TypeZstd, nil
	case "lz4":
		return TypeLZ4, nil
	}
	return TypeNone, merr.WrapErrParameterInvalidMsg("unknown compression %q", name)
}

// DefaultMaxDecodedSize 为解压结果的默认上限，与默认最大帧长一致。
const DefaultMaxDecodedSize uint32 = 16 * 1024 * 1024

// New 按算法创建压缩器，解压结果超过 maxDecodedSize 时返回 ErrStreamFrameTooLarge。
// maxDecodedSize 为 0 时使用 DefaultMaxDecodedSize。
func New(t Type, maxDecodedSize uint32) (Compressor, error) {
	switch t {
	case TypeNone:
		return NopCompressor{}, nil
	case TypeZstd:
		return NewZstdCompressor(maxDecodedSize)
	case TypeLZ4:
		return NewLZ4Compressor(maxDecodedSize), nil
	}
	return nil, merr.WrapErrOperationNotSupported("compress", t.String())
}

func decodedLimit(maxDecodedSize uint32) uint32 {
	if maxDecodedSize == 0 {
		return DefaultMaxDecodedSize
	}
	return maxDecodedSize
}

// NopCompressor 是一个空实现：不做任何压缩/解压，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

// 编译期断言：确保 NopCompressor 实现了 Compressor 接口。
var _ Compressor = NopCompressor{}
