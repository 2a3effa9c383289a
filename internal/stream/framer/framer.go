package framer

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// Framer 抽象了流式文件中“一条记录一帧”的打包/解包能力。
type Framer interface {
	// WriteFrame 将 Frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, f *Frame) error

	// ReadFrame 从 r 中读取一帧数据。流在帧边界结束时返回 io.EOF。
	ReadFrame(r io.Reader) (*Frame, error)
}

// 帧头格式（大端）：magic(2) | version(1) | flags(1) | size(4)，随后为 size 字节的负载。
const (
	HeaderSize = 8

	magic0 = 'P'
	magic1 = 'M'
)

// Flags 记录负载经过的处理：低 2 位为压缩算法编号，最高位表示已加密。
type Flags uint8

const (
	compressionMask Flags = 0x03
	FlagEncrypted   Flags = 0x80
)

// Compression 返回压缩算法编号。
func (f Flags) Compression() uint8 {
	return uint8(f & compressionMask)
}

// WithCompression 返回设置了压缩算法编号的 Flags。
func (f Flags) WithCompression(t uint8) Flags {
	return f&^compressionMask | Flags(t)&compressionMask
}

func (f Flags) Encrypted() bool {
	return f&FlagEncrypted != 0
}

// Frame 为一条记录。Version 为负载使用的 marshal 格式版本。
type Frame struct {
	Version uint8
	Flags   Flags
	Payload []byte
}

// AAD 返回帧头中参与完整性保护的部分（不含 size）。
func (f *Frame) AAD() []byte {
	return []byte{magic0, magic1, f.Version, byte(f.Flags)}
}

// LengthPrefixedFramer 使用固定帧头 + 长度前缀作为帧边界。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大负载大小，单位字节。
	// 为 0 时使用默认值 DefaultMaxFrameSize。
	MaxFrameSize uint32
}

var _ Framer = (*LengthPrefixedFramer)(nil)

const DefaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将帧头与负载合并为一次写入。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return merr.WrapErrParameterMissing("frame")
	}
	if uint64(len(frame.Payload)) > uint64(f.effectiveMaxSize()) {
		return merr.WrapErrStreamFrameTooLarge(uint32(min(uint64(len(frame.Payload)), 1<<32-1)), f.effectiveMaxSize())
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var header [HeaderSize]byte
	header[0], header[1] = magic0, magic1
	header[2] = frame.Version
	header[3] = byte(frame.Flags)
	binary.BigEndian.PutUint32(header[4:], uint32(len(frame.Payload)))
	_, _ = buf.Write(header[:])
	_, _ = buf.Write(frame.Payload)

	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "framer: write frame failed")
	}
	return nil
}

// ReadFrame 读取一帧。帧头不完整或负载不足时返回 io.ErrUnexpectedEOF。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "framer: read header failed")
	}
	if header[0] != magic0 || header[1] != magic1 {
		return nil, merr.WrapErrStreamFrameInvalid("bad magic")
	}

	length := binary.BigEndian.Uint32(header[4:])
	if length > f.effectiveMaxSize() {
		return nil, merr.WrapErrStreamFrameTooLarge(length, f.effectiveMaxSize())
	}

	frame := &Frame{
		Version: header[2],
		Flags:   Flags(header[3]),
		Payload: make([]byte, length),
	}
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "framer: read body failed")
	}
	return frame, nil
}

// Limit 返回生效的最大负载大小。
func (f *LengthPrefixedFramer) Limit() uint32 {
	return f.effectiveMaxSize()
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}
