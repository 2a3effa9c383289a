package marshal

import "github.com/lk2023060901/pymarshal/pkg/log"

// CodeBuilder 将解码出的代码记录构造为运行时的代码对象。
// 未设置时解码结果即为 *Code。
type CodeBuilder func(c *Code) (Value, error)

type options struct {
	maxDepth    int
	codeBuilder CodeBuilder
	logger      *log.MLogger
	trace       func(Record)
}

// Option 为编解码调用的可选参数。
type Option func(opt *options)

func defaultOptions() *options {
	return &options{
		maxDepth: MaxDepth,
	}
}

func buildOptions(opts []Option) *options {
	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// WithMaxDepth 设置递归深度上限，非正数时使用默认值。
func WithMaxDepth(n int) Option {
	return func(opt *options) {
		if n > 0 {
			opt.maxDepth = n
		}
	}
}

func WithCodeBuilder(b CodeBuilder) Option {
	return func(opt *options) {
		opt.codeBuilder = b
	}
}

// WithLogger 指定编码未知值时输出告警使用的 Logger。
func WithLogger(l *log.MLogger) Option {
	return func(opt *options) {
		opt.logger = l
	}
}

// WithTrace 在每条记录解码完成后回调，用于记录级别的诊断。
func WithTrace(f func(Record)) Option {
	return func(opt *options) {
		opt.trace = f
	}
}
