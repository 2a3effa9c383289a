package log

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameTraceID   = "traceID"
	FieldNameVersion   = "version"
	FieldNameTag       = "tag"
	FieldNameOffset    = "offset"
	FieldNameDepth     = "depth"
	FieldNameSize      = "size"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldVersion 返回编码格式版本字段。
func FieldVersion(version int) zap.Field {
	return zap.Int(FieldNameVersion, version)
}

// FieldTag 以可打印形式记录类型码，例如 0x5b('[')。
func FieldTag(tag byte) zap.Field {
	if tag >= 0x20 && tag < 0x7f {
		return zap.String(FieldNameTag, fmt.Sprintf("%#02x(%q)", tag, rune(tag)))
	}
	return zap.String(FieldNameTag, fmt.Sprintf("%#02x", tag))
}

func FieldOffset(offset int) zap.Field {
	return zap.Int(FieldNameOffset, offset)
}

func FieldDepth(depth int) zap.Field {
	return zap.Int(FieldNameDepth, depth)
}

func FieldSize(size int) zap.Field {
	return zap.Int(FieldNameSize, size)
}
