package marshal

import "fmt"

// Version 为当前写出时默认使用的格式版本。
const Version = 4

// MaxDepth 为编解码递归深度的默认上限。
const MaxDepth = 2000

const (
	// flagRef 为类型码最高位，表示该记录会登记到引用表。
	flagRef byte = 0x80

	// 大整数按 2^15 为基数存储，与 CPython 保持一致。
	digitShift = 15
	digitBase  = 1 << digitShift
	digitMask  = digitBase - 1
)

// Tag 为记录的类型码（不含引用标志位）。
type Tag byte

const (
	TagNull               Tag = '0'
	TagNone               Tag = 'N'
	TagNoValue            Tag = 'n'
	TagFalse              Tag = 'F'
	TagTrue               Tag = 'T'
	TagStopIteration      Tag = 'S'
	TagEllipsis           Tag = '.'
	TagInt                Tag = 'i'
	TagInt64              Tag = 'I'
	TagFloat              Tag = 'f'
	TagBinaryFloat        Tag = 'g'
	TagComplex            Tag = 'x'
	TagBinaryComplex      Tag = 'y'
	TagLong               Tag = 'l'
	TagBytes              Tag = 's'
	TagInterned           Tag = 't'
	TagRef                Tag = 'r'
	TagTuple              Tag = '('
	TagSmallTuple         Tag = ')'
	TagList               Tag = '['
	TagDict               Tag = '{'
	TagCode               Tag = 'c'
	TagNativeCode         Tag = 'C'
	TagUnicode            Tag = 'u'
	TagUnknown            Tag = '?'
	TagSet                Tag = '<'
	TagFrozenSet          Tag = '>'
	TagASCII              Tag = 'a'
	TagASCIIInterned      Tag = 'A'
	TagShortASCII         Tag = 'z'
	TagShortASCIIInterned Tag = 'Z'
)

var tagNames = map[Tag]string{
	TagNull:               "null",
	TagNone:               "none",
	TagNoValue:            "novalue",
	TagFalse:              "false",
	TagTrue:               "true",
	TagStopIteration:      "stopiter",
	TagEllipsis:           "ellipsis",
	TagInt:                "int",
	TagInt64:              "int64",
	TagFloat:              "float",
	TagBinaryFloat:        "binary_float",
	TagComplex:            "complex",
	TagBinaryComplex:      "binary_complex",
	TagLong:               "long",
	TagBytes:              "bytes",
	TagInterned:           "interned",
	TagRef:                "ref",
	TagTuple:              "tuple",
	TagSmallTuple:         "small_tuple",
	TagList:               "list",
	TagDict:               "dict",
	TagCode:               "code",
	TagNativeCode:         "native_code",
	TagUnicode:            "unicode",
	TagUnknown:            "unknown",
	TagSet:                "set",
	TagFrozenSet:          "frozenset",
	TagASCII:              "ascii",
	TagASCIIInterned:      "ascii_interned",
	TagShortASCII:         "short_ascii",
	TagShortASCIIInterned: "short_ascii_interned",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%#02x)", byte(t))
}

// Known 判断类型码是否为解码器可识别的类型。
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// splitTag 将记录首字节拆分为类型码和引用标志位。
func splitTag(code byte) (Tag, bool) {
	return Tag(code &^ flagRef), code&flagRef != 0
}

// 以下为按版本开关的格式行为。
func binaryFloats(version int) bool { return version >= 2 }

func refsEnabled(version int) bool { return version >= 3 }

func internedTags(version int) bool { return version >= 3 }

func smallTuples(version int) bool { return version >= 4 }
