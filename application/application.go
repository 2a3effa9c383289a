package application

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/internal/stream/codec"
	"github.com/lk2023060901/pymarshal/internal/stream/compressor"
	"github.com/lk2023060901/pymarshal/internal/stream/crypto"
	"github.com/lk2023060901/pymarshal/internal/stream/framer"
	"github.com/lk2023060901/pymarshal/internal/stream/serializer"
	zlog "github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
	zviper "github.com/lk2023060901/pymarshal/pkg/util/viper"
)

const (
	// DefaultConfigPath 为默认配置文件路径，文件不存在时使用默认配置。
	DefaultConfigPath = "./config.yaml"
	// ConfigPathEnv 为指定配置文件路径的环境变量。
	ConfigPathEnv = "PYMARSHAL_CONFIG_FILE_PATH"
)

// Application 持有加载后的配置，并按配置构造日志与编解码组件。
type Application struct {
	v   *zviper.Config
	cfg Config

	mu      sync.Mutex
	loggers map[string]*zlog.MLogger
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Init 加载配置并初始化日志。
// 配置文件路径优先级：path 参数 > PYMARSHAL_CONFIG_FILE_PATH > ./config.yaml。
// 仅当使用默认路径且文件不存在时允许缺省。
func (a *Application) Init(path string) error {
	if err := a.loadConfig(path); err != nil {
		return err
	}
	return a.initLogging()
}

// Config returns the loaded configuration.
func (a *Application) Config() *Config {
	return &a.cfg
}

// Viper 返回底层配置，命令行参数可通过 Set 覆盖其中的值。
func (a *Application) Viper() *zviper.Config {
	return a.v
}

// Logger 返回名为 name 的模块 Logger，未知名称退回全局 Logger。
func (a *Application) Logger(name string) *zlog.MLogger {
	a.mu.Lock()
	defer a.mu.Unlock()
	if lg, ok := a.loggers[name]; ok {
		return lg
	}
	lg := zlog.With(zlog.FieldModule(name))
	if a.loggers == nil {
		a.loggers = make(map[string]*zlog.MLogger)
	}
	a.loggers[name] = lg
	return lg
}

func (a *Application) loadConfig(path string) error {
	configPath := path
	if configPath == "" {
		configPath = os.Getenv(ConfigPathEnv)
	}
	optional := false
	if configPath == "" {
		configPath = DefaultConfigPath
		optional = true
	}

	v := zviper.New()
	setDefaults(v)
	if _, err := os.Stat(configPath); err == nil || !optional {
		if err := v.LoadFile(configPath); err != nil {
			return errors.Wrapf(err, "failed to load config file %q", configPath)
		}
	}
	a.v = v
	return a.Reload()
}

// Reload 根据当前的 viper 状态重新生成 Config，用于命令行覆盖之后。
func (a *Application) Reload() error {
	var cfg Config
	if err := a.v.Unmarshal(&cfg); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}
	if cfg.Marshal.Version < 0 || cfg.Marshal.Version > marshal.Version {
		return merr.WrapErrParameterInvalidRange(0, marshal.Version, cfg.Marshal.Version, "marshal.version")
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogging() error {
	logCfg := a.cfg.Log
	logger, props, err := zlog.InitLogger(&logCfg)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	zlog.Debug("config loaded",
		zlog.FieldVersion(a.cfg.Marshal.Version),
		zap.String("stream.format", a.cfg.Stream.Format),
		zap.String("stream.compression", a.cfg.Stream.Compression))
	return nil
}

// MarshalOptions 返回配置对应的编解码选项。
func (a *Application) MarshalOptions() []marshal.Option {
	return []marshal.Option{
		marshal.WithMaxDepth(a.cfg.Marshal.MaxDepth),
		marshal.WithLogger(a.Logger("marshal")),
	}
}

// NewSerializer 按格式名创建序列化器，marshal 格式使用配置中的版本。
func (a *Application) NewSerializer(format string) (serializer.Serializer, error) {
	if format == "" || format == "marshal" {
		return serializer.NewMarshalSerializer(a.cfg.Marshal.Version, a.MarshalOptions()...), nil
	}
	return serializer.ByName(format, a.cfg.Marshal.Version)
}

// NewCodec 按 stream 配置创建流编解码器。
func (a *Application) NewCodec() (codec.Codec, error) {
	sc := a.cfg.Stream
	s, err := a.NewSerializer(sc.Format)
	if err != nil {
		return nil, err
	}
	compression, err := compressor.ParseType(sc.Compression)
	if err != nil {
		return nil, err
	}
	opts := codec.Options{
		Framer:          framer.NewLengthPrefixedFramer(sc.MaxFrameSize),
		Serializer:      s,
		Compression:     compression,
		MinCompressSize: sc.MinCompressSize,
	}
	if sc.Encryption {
		enc, err := crypto.NewAEADHMACFromHex(sc.EncKey, sc.MacKey)
		if err != nil {
			return nil, err
		}
		opts.Encryptor = enc
	}
	return codec.New(opts)
}
