// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case codedError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(codedError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

func WrapErrAsInputError(err error) error {
	if merr, ok := err.(codedError); ok {
		WithErrorType(InputError)(&merr)
		return merr
	}
	return err
}

func GetErrorType(err error) ErrorType {
	if merr, ok := err.(codedError); ok {
		return merr.errType
	}

	return SystemError
}

// KindOf 返回编解码错误的分类（ValueError/EOFError/OverflowError）。
// 非编解码错误返回 KindUnknown。
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var coded codedError
	if errors.As(err, &coded) {
		return coded.kind
	}
	return KindUnknown
}

// Argument 返回错误携带的原始参数，例如无法编码的值。
func Argument(err error) (any, bool) {
	var coded codedError
	if errors.As(err, &coded) && coded.arg != nil {
		return coded.arg.v, true
	}
	return nil, false
}

// Service 相关错误封装。
func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO related
func WrapErrIoFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("key", key))
}

func WrapErrIoUnexpectEOF(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoUnexpectEOF, err.Error(), value("key", key))
}

// Parameter related
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidRange[T any](lower, upper, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		bound("value", actual, lower, upper),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterTooLarge(name string, msg ...string) error {
	err := wrapFields(ErrParameterTooLarge, value("message", name))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Marshal related

// WrapErrMarshalBadData 表示结构性损坏的 marshal 数据。
func WrapErrMarshalBadData(reason string, offset int) error {
	return wrapFieldsWithDesc(ErrMarshalValue, reason, value("offset", offset))
}

// WrapErrMarshalSizeOutOfRange 表示声明的长度为负或超出剩余缓冲区。
func WrapErrMarshalSizeOutOfRange(size int64, remaining int) error {
	return wrapFieldsWithDesc(ErrMarshalEOF, "bad marshal data (size out of range)",
		value("size", size),
		value("remaining", remaining),
	)
}

// WrapErrMarshalTruncated 表示定长字段读取时数据不足。
func WrapErrMarshalTruncated(need, remaining int) error {
	return wrapFields(ErrMarshalEOF,
		value("need", need),
		value("remaining", remaining),
	)
}

func WrapErrMarshalEOFObject(offset int) error {
	return wrapFieldsWithDesc(ErrMarshalEOF, "EOF read where object expected", value("offset", offset))
}

func WrapErrMarshalStackDepth(limit int) error {
	return wrapFieldsWithDesc(ErrMarshalValue, "max marshal stack depth exceeded", value("limit", limit))
}

func WrapErrMarshalUnknownTag(tag byte, offset int) error {
	return wrapFieldsWithDesc(ErrMarshalValue, "bad marshal data (unknown type code)",
		value("tag", fmt.Sprintf("%#02x", tag)),
		value("offset", offset),
	)
}

func WrapErrMarshalBadReference(index int32, size int) error {
	return wrapFieldsWithDesc(ErrMarshalValue, "bad marshal data (invalid reference)",
		bound("index", index, 0, size-1),
	)
}

// WrapErrMarshalUnsupported 表示值无法编码，arg 为原始值，可通过 Argument 取回。
func WrapErrMarshalUnsupported(arg any, reason string) error {
	err := ErrMarshalValue
	withArgument(arg)(&err)
	return wrapFieldsWithDesc(err, reason, value("type", fmt.Sprintf("%T", arg)))
}

func WrapErrMarshalOverflow(name string, n int, limit int64) error {
	return wrapFields(ErrMarshalOverflow, bound(name, n, 0, limit))
}

// Stream related
func WrapErrStreamFrameInvalid(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrStreamFrameInvalid, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrStreamFrameTooLarge(size, limit uint32) error {
	return wrapFields(ErrStreamFrameTooLarge, bound("size", size, 0, limit))
}

// WrapErrStreamDecodedTooLarge 表示解压后的负载超过上限。
func WrapErrStreamDecodedTooLarge(limit uint32) error {
	return wrapFieldsWithDesc(ErrStreamFrameTooLarge, "decompressed payload exceeds limit", value("limit", limit))
}

func WrapErrOperationNotSupported(op string, msg ...string) error {
	err := wrapFields(ErrOperationNotSupported, value("op", op))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err codedError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err codedError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
