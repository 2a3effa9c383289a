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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Kind 是编解码错误对外暴露的分类名，与运行时异常类型一一对应。
type Kind string

const (
	KindValue    Kind = "ValueError"
	KindEOF      Kind = "EOFError"
	KindOverflow Kind = "OverflowError"
	KindUnknown  Kind = ""
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceInternal = newCodedError("service internal error", 5, false)

	// IO related
	ErrIoFailed      = newCodedError("IO failed", 1001, false)
	ErrIoUnexpectEOF = newCodedError("unexpected EOF", 1002, true)

	// Parameter related
	ErrParameterInvalid  = newCodedError("invalid parameter", 1100, false)
	ErrParameterMissing  = newCodedError("missing parameter", 1101, false)
	ErrParameterTooLarge = newCodedError("parameter too large", 1102, false)

	// Marshal related
	ErrMarshalValue    = newCodedError("bad marshal data", 4000, false, withKind(KindValue))
	ErrMarshalEOF      = newCodedError("marshal data too short", 4001, false, withKind(KindEOF))
	ErrMarshalOverflow = newCodedError("marshal size overflow", 4002, false, withKind(KindOverflow))

	// Stream related
	ErrStreamFrameInvalid  = newCodedError("invalid stream frame", 4100, false)
	ErrStreamFrameTooLarge = newCodedError("stream frame too large", 4101, false)

	// General
	ErrOperationNotSupported = newCodedError("unsupported operation", 3000, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to codedError
	errUnexpected = newCodedError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*codedError)

func WithDetail(detail string) errorOption {
	return func(err *codedError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *codedError) {
		err.errType = etype
	}
}

func withKind(kind Kind) errorOption {
	return func(err *codedError) {
		err.kind = kind
	}
}

// withArgument 附带触发错误的原始参数（例如无法编码的值）。
// 参数以指针形式保存，保证 codedError 之间始终可以安全比较。
func withArgument(arg any) errorOption {
	return func(err *codedError) {
		err.arg = &argument{v: arg}
	}
}

type argument struct {
	v any
}

type codedError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
	kind      Kind
	arg       *argument
}

func newCodedError(msg string, code int32, retriable bool, options ...errorOption) codedError {
	err := codedError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e codedError) code() int32 {
	return e.errCode
}

func (e codedError) Error() string {
	return e.msg
}

func (e codedError) Detail() string {
	return e.detail
}

func (e codedError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(codedError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
