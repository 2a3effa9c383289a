package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/pymarshal/internal/stream/compressor"
	"github.com/lk2023060901/pymarshal/internal/stream/crypto"
	"github.com/lk2023060901/pymarshal/internal/stream/framer"
	"github.com/lk2023060901/pymarshal/internal/stream/serializer"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

type CodecSuite struct {
	suite.Suite
	enc crypto.Encryptor
}

func (s *CodecSuite) SetupSuite() {
	enc, err := crypto.NewAEADHMAC(bytes.Repeat([]byte{1}, crypto.KeySize), []byte("mac"))
	s.Require().NoError(err)
	s.enc = enc
}

func (s *CodecSuite) newCodec(opts Options) Codec {
	if opts.Framer == nil {
		opts.Framer = framer.NewLengthPrefixedFramer(0)
	}
	if opts.Serializer == nil {
		opts.Serializer = serializer.NewMarshalSerializer(marshal.Version)
	}
	c, err := New(opts)
	s.Require().NoError(err)
	s.T().Cleanup(c.Close)
	return c
}

func (s *CodecSuite) records() []marshal.Value {
	shared := marshal.NewStr("shared")
	return []marshal.Value{
		marshal.Int(1),
		marshal.NewList(shared, shared, marshal.Float(2.5)),
		marshal.NewStr(string(bytes.Repeat([]byte("long text "), 100))),
		marshal.None,
	}
}

func (s *CodecSuite) TestRoundTrip() {
	cases := map[string]Options{
		"plain":     {},
		"zstd":      {Compression: compressor.TypeZstd},
		"lz4":       {Compression: compressor.TypeLZ4, MinCompressSize: 64},
		"encrypted": {Encryptor: s.enc},
		"both":      {Compression: compressor.TypeZstd, Encryptor: s.enc},
	}
	for name, opts := range cases {
		s.Run(name, func() {
			c := s.newCodec(opts)
			var buf bytes.Buffer
			for _, v := range s.records() {
				s.Require().NoError(c.Encode(&buf, v))
			}

			for _, want := range s.records() {
				var got marshal.Value
				frame, err := c.Decode(&buf, &got)
				s.Require().NoError(err)
				s.Equal(uint8(marshal.Version), frame.Version)
				s.Equal(opts.Encryptor != nil, frame.Flags.Encrypted())
				s.True(marshal.Equal(want, got))
			}
			_, err := c.Decode(&buf, new(marshal.Value))
			s.Equal(io.EOF, err)
		})
	}
}

func (s *CodecSuite) TestMinCompressSize() {
	c := s.newCodec(Options{Compression: compressor.TypeLZ4, MinCompressSize: 1024})
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, marshal.Int(7)))
	frame, data, err := c.DecodeRaw(&buf)
	s.Require().NoError(err)
	s.Equal(uint8(0), frame.Flags.Compression())
	s.Equal([]byte{'i', 7, 0, 0, 0}, data)
}

func (s *CodecSuite) TestReaderSelectsCompression() {
	writer := s.newCodec(Options{Compression: compressor.TypeZstd})
	reader := s.newCodec(Options{})
	var buf bytes.Buffer
	s.Require().NoError(writer.Encode(&buf, marshal.NewStr("zstd record")))

	var got marshal.Value
	_, err := reader.Decode(&buf, &got)
	s.Require().NoError(err)
	s.Equal("zstd record", got.(*marshal.Str).S)
}

func (s *CodecSuite) TestEncryptedWithoutKey() {
	writer := s.newCodec(Options{Encryptor: s.enc})
	reader := s.newCodec(Options{})
	var buf bytes.Buffer
	s.Require().NoError(writer.Encode(&buf, marshal.Int(1)))

	_, err := reader.Decode(&buf, new(marshal.Value))
	s.ErrorIs(err, merr.ErrOperationNotSupported)
}

func (s *CodecSuite) TestTamperedHeader() {
	c := s.newCodec(Options{Encryptor: s.enc})
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, marshal.Int(1)))

	data := buf.Bytes()
	data[2] = 3 // 修改版本号
	_, err := c.Decode(bytes.NewReader(data), new(marshal.Value))
	s.ErrorIs(err, crypto.ErrInvalidMAC)
}

func (s *CodecSuite) TestJSONSerializer() {
	c := s.newCodec(Options{Serializer: serializer.JSONSerializer{}})
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, map[string]any{"a": int64(1)}))

	var got any
	frame, err := c.Decode(&buf, &got)
	s.Require().NoError(err)
	s.Equal(uint8(0), frame.Version)
	s.Equal(map[string]any{"a": int64(1)}, got)
}

func (s *CodecSuite) TestErrors() {
	_, err := New(Options{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = New(Options{Framer: framer.NewLengthPrefixedFramer(0)})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = New(Options{
		Framer:      framer.NewLengthPrefixedFramer(0),
		Serializer:  serializer.JSONSerializer{},
		Compression: compressor.Type(3),
	})
	s.ErrorIs(err, merr.ErrOperationNotSupported)

	c := s.newCodec(Options{})
	s.ErrorIs(c.Encode(nil, marshal.None), merr.ErrParameterMissing)
	_, _, err = c.DecodeRaw(nil)
	s.ErrorIs(err, merr.ErrParameterMissing)

	unencodable := marshal.NewList()
	for i := 0; i < marshal.MaxDepth; i++ {
		unencodable = marshal.NewList(unencodable)
	}
	var buf bytes.Buffer
	err = c.Encode(&buf, unencodable)
	s.Equal(merr.KindValue, merr.KindOf(err))
	s.Zero(buf.Len())

	var got marshal.Value
	_, err = c.Decode(bytes.NewReader([]byte{'P', 'M', 4, 0, 0, 0, 0, 1, 'Q'}), &got)
	s.Equal(merr.KindValue, merr.KindOf(err))
}

func (s *CodecSuite) TestDecompressedSizeLimit() {
	payload := &marshal.Bytes{B: make([]byte, 1<<20)}
	for _, typ := range []compressor.Type{compressor.TypeZstd, compressor.TypeLZ4} {
		s.Run(typ.String(), func() {
			writer := s.newCodec(Options{Compression: typ})
			var buf bytes.Buffer
			s.Require().NoError(writer.Encode(&buf, payload))
			s.Less(buf.Len(), 16384)

			reader := s.newCodec(Options{Framer: framer.NewLengthPrefixedFramer(16384)})
			_, err := reader.Decode(&buf, new(marshal.Value))
			s.ErrorIs(err, merr.ErrStreamFrameTooLarge)

			// 写出方同样拒绝超过上限的负载。
			err = reader.Encode(io.Discard, payload)
			s.ErrorIs(err, merr.ErrStreamFrameTooLarge)
		})
	}

	c := s.newCodec(Options{Compression: compressor.TypeZstd, MaxDecodedSize: 1 << 21})
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, payload))
	var got marshal.Value
	_, err := c.Decode(&buf, &got)
	s.Require().NoError(err)
	s.Len(got.(*marshal.Bytes).B, 1<<20)
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}
