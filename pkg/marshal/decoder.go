package marshal

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// foreignCodeFields 为跨运行时代码记录的固定字段数。
const foreignCodeFields = 16

// decoder 持有单次解码调用的全部状态。引用表只追加，下标即登记顺序。
type decoder struct {
	data     []byte
	pos      int
	depth    int
	maxDepth int
	refs     []Value
	backRefs int
	lastRef  int

	codeBuilder CodeBuilder
	trace       func(Record)
	// hasher 在整次解码中复用，共享的 tuple/frozenset 键只哈希一次。
	hasher *hasher
}

func newDecoder(data []byte, opts *options) *decoder {
	return &decoder{
		data:        data,
		maxDepth:    opts.maxDepth,
		codeBuilder: opts.codeBuilder,
		trace:       opts.trace,
		hasher:      newHasher(),
	}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

func (d *decoder) decode() (Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth >= d.maxDepth {
		return nil, merr.WrapErrMarshalStackDepth(d.maxDepth)
	}

	start := d.pos
	if d.remaining() < 1 {
		return nil, merr.WrapErrMarshalEOFObject(start)
	}
	tag, ref := splitTag(d.data[d.pos])
	d.pos++

	refIndex := -1
	if ref {
		refIndex = len(d.refs)
	}
	v, err := d.decodeTagged(tag, ref, start)
	if d.trace != nil {
		rec := Record{
			Offset:   start,
			Size:     d.pos - start,
			Tag:      tag,
			Ref:      ref,
			Depth:    d.depth,
			RefIndex: -1,
		}
		switch {
		case err != nil:
		case tag == TagRef:
			rec.RefIndex = d.lastRef
		case refIndex >= 0 && len(d.refs) > refIndex:
			rec.RefIndex = refIndex
		}
		d.trace(rec)
	}
	return v, err
}

func (d *decoder) decodeTagged(tag Tag, ref bool, start int) (Value, error) {
	// register 在填充子元素之前登记容器，使其可以被自身或兄弟元素回引用。
	register := func(v Value) Value {
		if ref {
			d.refs = append(d.refs, v)
		}
		return v
	}

	switch tag {
	case TagNull, TagUnknown:
		return Null, nil
	case TagNone:
		return None, nil
	case TagNoValue:
		return NoValue, nil
	case TagStopIteration:
		return StopIteration, nil
	case TagEllipsis:
		return Ellipsis, nil
	case TagFalse:
		return Bool(false), nil
	case TagTrue:
		return Bool(true), nil

	case TagRef:
		idx, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(d.refs) {
			return nil, merr.WrapErrMarshalBadReference(idx, len(d.refs))
		}
		d.backRefs++
		d.lastRef = int(idx)
		return d.refs[idx], nil

	case TagInt:
		n, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return register(Int(n)), nil
	case TagInt64:
		n, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return register(Int(n)), nil
	case TagLong:
		return d.readBigInt(register)

	case TagFloat:
		f, err := d.readFloatString()
		if err != nil {
			return nil, err
		}
		return register(Float(f)), nil
	case TagBinaryFloat:
		f, err := d.readFloat64()
		if err != nil {
			return nil, err
		}
		return register(Float(f)), nil
	case TagComplex:
		re, err := d.readFloatString()
		if err != nil {
			return nil, err
		}
		im, err := d.readFloatString()
		if err != nil {
			return nil, err
		}
		return register(&Complex{Real: re, Imag: im}), nil
	case TagBinaryComplex:
		re, err := d.readFloat64()
		if err != nil {
			return nil, err
		}
		im, err := d.readFloat64()
		if err != nil {
			return nil, err
		}
		return register(&Complex{Real: re, Imag: im}), nil

	case TagBytes:
		b, err := d.readSizedBytes()
		if err != nil {
			return nil, err
		}
		return register(&Bytes{B: b}), nil
	case TagUnicode, TagInterned:
		s, err := d.readUTF8()
		if err != nil {
			return nil, err
		}
		return register(&Str{S: s, Interned: tag == TagInterned}), nil
	case TagASCII, TagASCIIInterned, TagShortASCII, TagShortASCIIInterned:
		var n int
		var err error
		if tag == TagShortASCII || tag == TagShortASCIIInterned {
			n, err = d.readByteSize()
		} else {
			n, err = d.readSize()
		}
		if err != nil {
			return nil, err
		}
		s, err := d.readASCII(n)
		if err != nil {
			return nil, err
		}
		interned := tag == TagASCIIInterned || tag == TagShortASCIIInterned
		return register(&Str{S: s, Interned: interned}), nil

	case TagTuple, TagSmallTuple:
		var n int
		var err error
		if tag == TagSmallTuple {
			n, err = d.readByteSize()
		} else {
			n, err = d.readSize()
		}
		if err != nil {
			return nil, err
		}
		t := &Tuple{Items: make([]Value, n)}
		register(t)
		return t, d.readItems(t.Items)
	case TagList:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		l := &List{Items: make([]Value, n)}
		register(l)
		return l, d.readItems(l.Items)
	case TagDict:
		return d.readDict(register)
	case TagSet, TagFrozenSet:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		s := newSetCap(tag == TagFrozenSet, n)
		register(s)
		d.hasher.begin(s)
		defer d.hasher.end(s)
		for i := 0; i < n; i++ {
			item, err := d.decode()
			if err != nil {
				return nil, err
			}
			if IsNull(item) {
				return nil, merr.WrapErrMarshalBadData("NULL object in set", d.pos)
			}
			if err := s.add(d.hasher, item); err != nil {
				return nil, err
			}
		}
		return s, nil

	case TagNativeCode:
		return d.readNativeCode(register)
	case TagCode:
		return d.readForeignCode(register)
	}
	return nil, merr.WrapErrMarshalUnknownTag(byte(tag), start)
}

func (d *decoder) readItems(items []Value) error {
	for i := range items {
		item, err := d.decode()
		if err != nil {
			return err
		}
		if IsNull(item) {
			return merr.WrapErrMarshalBadData("NULL object in sequence", d.pos)
		}
		items[i] = item
	}
	return nil
}

// readDict 以 Null 键作为结束标志，声明的个数只用于预分配容量。
func (d *decoder) readDict(register func(Value) Value) (Value, error) {
	n, err := d.readSize()
	if err != nil {
		return nil, err
	}
	dict := newDictCap(n)
	register(dict)
	for {
		key, err := d.decode()
		if err != nil {
			return nil, err
		}
		if IsNull(key) {
			break
		}
		val, err := d.decode()
		if err != nil {
			return nil, err
		}
		if IsNull(val) {
			continue
		}
		if err := dict.set(d.hasher, key, val); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func (d *decoder) readBigInt(register func(Value) Value) (Value, error) {
	n, err := d.readInt32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return register(&BigInt{V: new(big.Int)}), nil
	}
	count := int64(n)
	negative := count < 0
	if negative {
		count = -count
	}
	if count*2 > int64(d.remaining()) {
		return nil, merr.WrapErrMarshalSizeOutOfRange(count*2, d.remaining())
	}
	digits := make([]uint16, count)
	for i := range digits {
		digits[i] = binary.LittleEndian.Uint16(d.data[d.pos:])
		d.pos += 2
		if digits[i] > digitMask {
			return nil, merr.WrapErrMarshalBadData("bad marshal data (digit out of range in long)", d.pos-2)
		}
	}
	if digits[len(digits)-1] == 0 {
		return nil, merr.WrapErrMarshalBadData("bad marshal data (unnormalized long data)", d.pos-2)
	}
	return register(&BigInt{V: bigFromDigits(digits, negative)}), nil
}

func (d *decoder) readNativeCode(register func(Value) Value) (Value, error) {
	filename, err := d.readUTF8()
	if err != nil {
		return nil, err
	}
	flags, err := d.readInt32()
	if err != nil {
		return nil, err
	}
	code, err := d.readSizedBytes()
	if err != nil {
		return nil, err
	}
	firstLine, err := d.readInt32()
	if err != nil {
		return nil, err
	}
	lineTable, err := d.readSizedBytes()
	if err != nil {
		return nil, err
	}
	c := &Code{
		Filename:  filename,
		Flags:     uint32(flags),
		Code:      code,
		FirstLine: firstLine,
		LineTable: lineTable,
	}
	if d.codeBuilder == nil {
		return register(c), nil
	}
	v, err := d.codeBuilder(c)
	if err != nil {
		return nil, err
	}
	return register(v), nil
}

// readForeignCode 读取跨运行时代码记录，结果为登记在前的 16 元组：
// 6 个 int32 字段、8 个嵌套记录、首行号、行号表记录。
func (d *decoder) readForeignCode(register func(Value) Value) (Value, error) {
	items := make([]Value, foreignCodeFields)
	t := &Tuple{Items: items}
	register(t)

	i := 0
	readInt := func() error {
		n, err := d.readInt32()
		if err != nil {
			return err
		}
		items[i] = Int(n)
		i++
		return nil
	}
	readObject := func() error {
		v, err := d.decode()
		if err != nil {
			return err
		}
		if IsNull(v) {
			return merr.WrapErrMarshalBadData("NULL object in code", d.pos)
		}
		items[i] = v
		i++
		return nil
	}
	for n := 0; n < 6; n++ {
		if err := readInt(); err != nil {
			return nil, err
		}
	}
	for n := 0; n < 8; n++ {
		if err := readObject(); err != nil {
			return nil, err
		}
	}
	if err := readInt(); err != nil {
		return nil, err
	}
	if err := readObject(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *decoder) need(n int) error {
	if d.remaining() < n {
		return merr.WrapErrMarshalTruncated(n, d.remaining())
	}
	return nil
}

func (d *decoder) readInt32() (int32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(d.data[d.pos:]))
	d.pos += 4
	return v, nil
}

func (d *decoder) readInt64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(d.data[d.pos:]))
	d.pos += 8
	return v, nil
}

func (d *decoder) readFloat64() (float64, error) {
	bits, err := d.readInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

// readSize 读取 4 字节长度并校验其不为负且不超过剩余字节数。
func (d *decoder) readSize() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	return d.checkSize(int64(n))
}

func (d *decoder) readByteSize() (int, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	n := d.data[d.pos]
	d.pos++
	return d.checkSize(int64(n))
}

func (d *decoder) checkSize(n int64) (int, error) {
	if n < 0 || n > int64(d.remaining()) {
		return 0, merr.WrapErrMarshalSizeOutOfRange(n, d.remaining())
	}
	return int(n), nil
}

// take 返回接下来 n 个字节的副本，n 已经过 checkSize 校验。
func (d *decoder) take(n int) []byte {
	b := make([]byte, n)
	copy(b, d.data[d.pos:d.pos+n])
	d.pos += n
	return b
}

func (d *decoder) readSizedBytes() ([]byte, error) {
	n, err := d.readSize()
	if err != nil {
		return nil, err
	}
	return d.take(n), nil
}

func (d *decoder) readUTF8() (string, error) {
	n, err := d.readSize()
	if err != nil {
		return "", err
	}
	start := d.pos
	b := d.data[d.pos : d.pos+n]
	if !utf8.Valid(b) {
		return "", merr.WrapErrMarshalBadData("bad marshal data (invalid utf-8)", start)
	}
	d.pos += n
	return string(b), nil
}

func (d *decoder) readASCII(n int) (string, error) {
	b := d.data[d.pos : d.pos+n]
	for i, c := range b {
		if c >= utf8.RuneSelf {
			return "", merr.WrapErrMarshalBadData("bad marshal data (non-ascii byte in ascii string)", d.pos+i)
		}
	}
	d.pos += n
	return string(b), nil
}

func (d *decoder) readFloatString() (float64, error) {
	n, err := d.readByteSize()
	if err != nil {
		return 0, err
	}
	start := d.pos
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	if f, ok := parseSpecialFloat(s); ok {
		return f, nil
	}
	if !isDecimalFloat(s) {
		return 0, merr.WrapErrMarshalBadData("bad marshal data (invalid float "+strconv.Quote(s)+")", start)
	}
	f, err := strconv.ParseFloat(s, 64)
	if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
		// 超出范围时 ParseFloat 已返回 ±Inf 或 0。
		err = nil
	}
	if err != nil {
		return 0, merr.WrapErrMarshalBadData("bad marshal data (invalid float "+strconv.Quote(s)+")", start)
	}
	return f, nil
}

// parseSpecialFloat 识别带可选符号的 inf、infinity、nan，不区分大小写。
func parseSpecialFloat(s string) (float64, bool) {
	sign := 1
	body := s
	if body != "" && (body[0] == '+' || body[0] == '-') {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	switch strings.ToLower(body) {
	case "inf", "infinity":
		return math.Inf(sign), true
	case "nan":
		return math.Copysign(math.NaN(), float64(sign)), true
	}
	return 0, false
}

// isDecimalFloat 只接受十进制浮点数字符，排除十六进制浮点数和下划线分隔符。
func isDecimalFloat(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == 'e', c == 'E', c == '+', c == '-':
		default:
			return false
		}
	}
	return true
}
