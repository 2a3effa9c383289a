package marshal

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// encoder 持有单次编码调用的全部状态，不在调用之间共享。
type encoder struct {
	buf      *bytebufferpool.ByteBuffer
	version  int
	depth    int
	maxDepth int
	refs     map[Value]int32
	backRefs int
	logger   *log.MLogger
}

func newEncoder(buf *bytebufferpool.ByteBuffer, version int, opts *options) *encoder {
	e := &encoder{
		buf:      buf,
		version:  version,
		maxDepth: opts.maxDepth,
		logger:   opts.logger,
	}
	if refsEnabled(version) {
		e.refs = make(map[Value]int32)
	}
	return e
}

func (e *encoder) encode(v Value) error {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth >= e.maxDepth {
		return merr.WrapErrMarshalStackDepth(e.maxDepth)
	}

	switch x := v.(type) {
	case nil:
		e.writeTag(TagNull, 0)
	case Sentinel:
		return e.writeSentinel(x)
	case Bool:
		if x {
			e.writeTag(TagTrue, 0)
		} else {
			e.writeTag(TagFalse, 0)
		}
	case Int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			e.writeTag(TagInt, 0)
			e.writeInt32(int32(x))
		} else {
			e.writeTag(TagInt64, 0)
			e.writeInt64(int64(x))
		}
	case Float:
		return e.writeFloat(float64(x), 0)
	case *Unknown:
		// 未知值不登记引用，避免产生指向无效记录的回引用。
		e.writeTag(TagUnknown, 0)
		e.warnUnknown(x)
	default:
		return e.encodeReferenced(v)
	}
	return nil
}

// encodeReferenced 处理参与去重的值。version >= 3 时先查引用表，
// 未命中则在递归写子元素之前登记，自引用容器因此能正确写出回引用。
func (e *encoder) encodeReferenced(v Value) error {
	if isNilValue(v) {
		return merr.WrapErrMarshalUnsupported(v, "not possible to marshal nil "+v.Type())
	}
	var flag byte
	if e.refs != nil {
		if idx, ok := e.refs[v]; ok {
			e.writeTag(TagRef, 0)
			e.writeInt32(idx)
			e.backRefs++
			return nil
		}
		if len(e.refs) >= math.MaxInt32 {
			return merr.WrapErrMarshalOverflow("references", len(e.refs), math.MaxInt32)
		}
		e.refs[v] = int32(len(e.refs))
		flag = flagRef
	}

	switch x := v.(type) {
	case *BigInt:
		return e.writeBigInt(x.V, flag)
	case *Complex:
		if binaryFloats(e.version) {
			e.writeTag(TagBinaryComplex, flag)
			e.writeFloat64(x.Real)
			e.writeFloat64(x.Imag)
			return nil
		}
		e.writeTag(TagComplex, flag)
		e.writeShortString(formatFloat(x.Real))
		e.writeShortString(formatFloat(x.Imag))
	case *Bytes:
		e.writeTag(TagBytes, flag)
		return e.writeBytes(x.B)
	case *Str:
		if !utf8.ValidString(x.S) {
			return merr.WrapErrMarshalUnsupported(v, "string is not valid UTF-8")
		}
		if x.Interned && internedTags(e.version) {
			e.writeTag(TagInterned, flag)
		} else {
			e.writeTag(TagUnicode, flag)
		}
		return e.writeBytes([]byte(x.S))
	case *Tuple:
		if smallTuples(e.version) && len(x.Items) < 256 {
			e.writeTag(TagSmallTuple, flag)
			e.buf.WriteByte(byte(len(x.Items)))
		} else {
			e.writeTag(TagTuple, flag)
			if err := e.writeSize(len(x.Items)); err != nil {
				return err
			}
		}
		return e.encodeItems(x.Items)
	case *List:
		e.writeTag(TagList, flag)
		if err := e.writeSize(len(x.Items)); err != nil {
			return err
		}
		return e.encodeItems(x.Items)
	case *Dict:
		e.writeTag(TagDict, flag)
		if err := e.writeSize(x.Len()); err != nil {
			return err
		}
		for _, item := range x.items {
			if err := e.encode(item.Key); err != nil {
				return err
			}
			if err := e.encode(item.Value); err != nil {
				return err
			}
		}
		e.writeTag(TagNull, 0)
	case *Set:
		if x.Frozen {
			e.writeTag(TagFrozenSet, flag)
		} else {
			e.writeTag(TagSet, flag)
		}
		if err := e.writeSize(x.Len()); err != nil {
			return err
		}
		return e.encodeItems(x.items)
	case *Code:
		return e.writeCode(x, flag)
	default:
		return merr.WrapErrMarshalUnsupported(v, fmt.Sprintf("not possible to marshal %T", v))
	}
	return nil
}

func (e *encoder) encodeItems(items []Value) error {
	for _, item := range items {
		if err := e.encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeSentinel(s Sentinel) error {
	switch s {
	case Null:
		e.writeTag(TagNull, 0)
	case None:
		e.writeTag(TagNone, 0)
	case NoValue:
		e.writeTag(TagNoValue, 0)
	case StopIteration:
		e.writeTag(TagStopIteration, 0)
	case Ellipsis:
		e.writeTag(TagEllipsis, 0)
	default:
		return merr.WrapErrMarshalUnsupported(s, "not possible to marshal "+s.String())
	}
	return nil
}

func (e *encoder) writeFloat(f float64, flag byte) error {
	if binaryFloats(e.version) {
		e.writeTag(TagBinaryFloat, flag)
		e.writeFloat64(f)
		return nil
	}
	e.writeTag(TagFloat, flag)
	e.writeShortString(formatFloat(f))
	return nil
}

// writeBigInt 写出带符号的数字个数和 2^15 进制数字；0 走 int32 记录。
func (e *encoder) writeBigInt(v *big.Int, flag byte) error {
	if v.Sign() == 0 {
		e.writeTag(TagInt, flag)
		e.writeInt32(0)
		return nil
	}
	digits := bigDigits(v)
	if len(digits) > math.MaxInt32 {
		return merr.WrapErrMarshalOverflow("digits", len(digits), math.MaxInt32)
	}
	n := int32(len(digits))
	if v.Sign() < 0 {
		n = -n
	}
	e.writeTag(TagLong, flag)
	e.writeInt32(n)
	for _, d := range digits {
		e.buf.B = binary.LittleEndian.AppendUint16(e.buf.B, d)
	}
	return nil
}

func (e *encoder) writeCode(c *Code, flag byte) error {
	if !utf8.ValidString(c.Filename) {
		return merr.WrapErrMarshalUnsupported(c, "code filename is not valid UTF-8")
	}
	e.writeTag(TagNativeCode, flag)
	if err := e.writeBytes([]byte(c.Filename)); err != nil {
		return err
	}
	e.writeInt32(int32(c.Flags))
	if err := e.writeBytes(c.Code); err != nil {
		return err
	}
	e.writeInt32(c.FirstLine)
	return e.writeBytes(c.LineTable)
}

func (e *encoder) warnUnknown(u *Unknown) {
	var inner any
	if u != nil {
		inner = u.V
	}
	logger := e.logger
	if logger == nil {
		logger = log.With(log.FieldModule("marshal")).WithRateGroup("marshal.unknown", 1, 10)
	}
	logger.RatedWarn(1, "value replaced by unknown marker",
		zap.String("type", fmt.Sprintf("%T", inner)),
		log.FieldVersion(e.version),
		log.FieldDepth(e.depth),
		log.FieldOffset(e.buf.Len()-1))
}

func (e *encoder) writeTag(t Tag, flag byte) {
	e.buf.WriteByte(byte(t) | flag)
}

func (e *encoder) writeInt32(v int32) {
	e.buf.B = binary.LittleEndian.AppendUint32(e.buf.B, uint32(v))
}

func (e *encoder) writeInt64(v int64) {
	e.buf.B = binary.LittleEndian.AppendUint64(e.buf.B, uint64(v))
}

func (e *encoder) writeFloat64(f float64) {
	e.buf.B = binary.LittleEndian.AppendUint64(e.buf.B, math.Float64bits(f))
}

func (e *encoder) writeSize(n int) error {
	if n > math.MaxInt32 {
		return merr.WrapErrMarshalOverflow("size", n, math.MaxInt32)
	}
	e.writeInt32(int32(n))
	return nil
}

func (e *encoder) writeBytes(b []byte) error {
	if err := e.writeSize(len(b)); err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

// writeShortString 写出 1 字节长度前缀的短字符串，浮点数表示不会超过 255 字节。
func (e *encoder) writeShortString(s string) {
	e.buf.WriteByte(byte(len(s)))
	e.buf.WriteString(s)
}

// formatFloat 生成最短且可往返的十进制表示，格式与 repr 一致，
// 例如 1.0、1e+16、1e-05、inf、nan。
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(s, 'e')
	exp, _ := strconv.Atoi(s[i+1:])
	if exp < -4 || exp >= 16 {
		return s
	}
	s = strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func isNilValue(v Value) bool {
	switch x := v.(type) {
	case *BigInt:
		return x == nil || x.V == nil
	case *Complex:
		return x == nil
	case *Bytes:
		return x == nil
	case *Str:
		return x == nil
	case *Tuple:
		return x == nil
	case *List:
		return x == nil
	case *Dict:
		return x == nil
	case *Set:
		return x == nil
	case *Code:
		return x == nil
	case *Unknown:
		return x == nil
	}
	return false
}
