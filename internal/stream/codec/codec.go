package codec

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/internal/stream/compressor"
	"github.com/lk2023060901/pymarshal/internal/stream/crypto"
	"github.com/lk2023060901/pymarshal/internal/stream/framer"
	"github.com/lk2023060901/pymarshal/internal/stream/serializer"
	"github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/metrics"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// Codec 抽象了“从值到帧，以及从帧回到值”的完整编解码流程，
// 一个流中可以连续写入多帧，每帧承载一条记录。
//
// Pipeline（写出 Encode）：
//
//	value --> serializer --> [compress?] --> [encrypt?] --> Frame{Header+Payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Frame{Header+Payload} --> [decrypt?] --> [decompress?] --> serializer --> value
type Codec interface {
	// Encode 将 v 编码为一帧并写入 w。
	Encode(w io.Writer, v any) error

	// Decode 从 r 中读取一帧并解码到 v（*marshal.Value 或 *any）。
	// 流在帧边界结束时返回 io.EOF。
	Decode(r io.Reader, v any) (*framer.Frame, error)

	// DecodeRaw 读取一帧并返回帧头以及解密、解压后的负载，不做反序列化。
	DecodeRaw(r io.Reader) (*framer.Frame, []byte, error)

	// Close 释放压缩器持有的资源。
	Close()
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer
	Serializer serializer.Serializer
	// Compression 为写出时使用的压缩算法，读入时按帧头选择。
	Compression compressor.Type
	// MinCompressSize 为触发压缩的最小负载长度，更短的负载原样写出。
	MinCompressSize int
	// Encryptor 为 nil 时不加密，读到加密帧返回错误。
	Encryptor crypto.Encryptor
	// MaxDecodedSize 为序列化负载（压缩前、解压后）的上限。
	// 为 0 时沿用 Framer 的最大帧长，Framer 不提供时使用 framer.DefaultMaxFrameSize。
	MaxDecodedSize uint32
}

type codec struct {
	log.Binder

	framer     framer.Framer
	serializer serializer.Serializer
	version    uint8
	encryptor  crypto.Encryptor

	compression     compressor.Type
	minCompressSize int
	maxDecodedSize  uint32

	mu          sync.Mutex
	compressors map[compressor.Type]compressor.Compressor
}

var _ Codec = (*codec)(nil)

type versioned interface {
	Version() int
}

type limited interface {
	Limit() uint32
}

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Framer == nil {
		return nil, merr.WrapErrParameterMissing("framer")
	}
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterMissing("serializer")
	}

	c := &codec{
		framer:          opts.Framer,
		serializer:      opts.Serializer,
		encryptor:       opts.Encryptor,
		compression:     opts.Compression,
		minCompressSize: opts.MinCompressSize,
		maxDecodedSize:  opts.MaxDecodedSize,
		compressors:     make(map[compressor.Type]compressor.Compressor),
	}
	if c.maxDecodedSize == 0 {
		c.maxDecodedSize = framer.DefaultMaxFrameSize
		if l, ok := opts.Framer.(limited); ok {
			c.maxDecodedSize = l.Limit()
		}
	}
	if v, ok := opts.Serializer.(versioned); ok {
		c.version = uint8(v.Version())
	}
	if _, err := c.compressor(opts.Compression); err != nil {
		return nil, err
	}
	c.SetLogger(log.With(log.FieldModule("stream"), zap.String("serializer", opts.Serializer.Name())))
	return c, nil
}

func (c *codec) compressor(t compressor.Type) (compressor.Compressor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cp, ok := c.compressors[t]; ok {
		return cp, nil
	}
	cp, err := compressor.New(t, c.maxDecodedSize)
	if err != nil {
		return nil, err
	}
	c.compressors[t] = cp
	return cp, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, v any) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}

	// 第一步：序列化。
	body, err := c.serializer.Marshal(v)
	if err != nil {
		metrics.ObserveCodec(metrics.OpFrameWrite, 0, 0, string(merr.KindOf(err)), err)
		return errors.Wrap(err, "codec: marshal failed")
	}
	// 超过上限的负载即使压缩后能写出，读入时也会被拒绝。
	if uint64(len(body)) > uint64(c.maxDecodedSize) {
		err := merr.WrapErrStreamFrameTooLarge(uint32(min(uint64(len(body)), 1<<32-1)), c.maxDecodedSize)
		metrics.ObserveCodec(metrics.OpFrameWrite, 0, 0, "", err)
		return err
	}

	frame := &framer.Frame{Version: c.version}

	// 第二步：可选压缩。
	if c.compression != compressor.TypeNone && len(body) >= c.minCompressSize && len(body) > 0 {
		cp, err := c.compressor(c.compression)
		if err != nil {
			return err
		}
		compressed, err := cp.Compress(nil, body)
		if err != nil {
			return errors.Wrap(err, "codec: compress failed")
		}
		body = compressed
		frame.Flags = frame.Flags.WithCompression(uint8(c.compression))
	}

	// 第三步：可选加密，帧头参与签名。
	if c.encryptor != nil {
		frame.Flags |= framer.FlagEncrypted
		packet, err := c.encryptor.Encrypt(body, frame.AAD())
		if err != nil {
			return errors.Wrap(err, "codec: encrypt failed")
		}
		body = packet
	}

	frame.Payload = body
	if err := c.framer.WriteFrame(w, frame); err != nil {
		c.Logger().Warn("write frame failed", log.FieldSize(len(body)), zap.Error(err))
		metrics.ObserveCodec(metrics.OpFrameWrite, 0, 0, "", err)
		return errors.Wrap(err, "codec: write frame failed")
	}
	metrics.ObserveCodec(metrics.OpFrameWrite, framer.HeaderSize+len(body), 0, "", nil)
	return nil
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) (*framer.Frame, []byte, error) {
	if r == nil {
		return nil, nil, merr.WrapErrParameterMissing("reader")
	}

	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, io.EOF
		}
		metrics.ObserveCodec(metrics.OpFrameRead, 0, 0, "", err)
		return nil, nil, errors.Wrap(err, "codec: read frame failed")
	}
	data, err := c.open(frame)
	if err != nil {
		c.Logger().Warn("open frame failed",
			log.FieldVersion(int(frame.Version)),
			log.FieldSize(len(frame.Payload)),
			zap.Error(err))
		metrics.ObserveCodec(metrics.OpFrameRead, 0, 0, "", err)
		return nil, nil, err
	}
	metrics.ObserveCodec(metrics.OpFrameRead, framer.HeaderSize+len(frame.Payload), 0, "", nil)
	return frame, data, nil
}

// open 依次解密、解压帧负载。
func (c *codec) open(frame *framer.Frame) ([]byte, error) {
	data := frame.Payload

	if frame.Flags.Encrypted() {
		if c.encryptor == nil {
			return nil, merr.WrapErrOperationNotSupported("decrypt", "encrypted frame but no key configured")
		}
		plain, err := c.encryptor.Decrypt(data, frame.AAD())
		if err != nil {
			return nil, errors.Wrap(err, "codec: decrypt failed")
		}
		data = plain
	}

	if t := compressor.Type(frame.Flags.Compression()); t != compressor.TypeNone {
		cp, err := c.compressor(t)
		if err != nil {
			return nil, err
		}
		plain, err := cp.Decompress(nil, data)
		if err != nil {
			return nil, errors.Wrap(err, "codec: decompress failed")
		}
		data = plain
	}
	return data, nil
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, v any) (*framer.Frame, error) {
	frame, data, err := c.DecodeRaw(r)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := c.serializer.Unmarshal(data, v); err != nil {
			return frame, errors.Wrap(err, "codec: unmarshal failed")
		}
	}
	return frame, nil
}

func (c *codec) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t, cp := range c.compressors {
		if z, ok := cp.(*compressor.ZstdCompressor); ok {
			z.Close()
		}
		delete(c.compressors, t)
	}
}
