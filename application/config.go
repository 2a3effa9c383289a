package application

import (
	"github.com/lk2023060901/pymarshal/internal/stream/framer"
	zlog "github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	zviper "github.com/lk2023060901/pymarshal/pkg/util/viper"
)

// Config 为配置文件的完整结构。
type Config struct {
	Log     zlog.Config   `mapstructure:"log"`
	Marshal MarshalConfig `mapstructure:"marshal"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Verify  VerifyConfig  `mapstructure:"verify"`
}

// MarshalConfig 控制写出版本与递归深度。
type MarshalConfig struct {
	Version  int `mapstructure:"version"`
	MaxDepth int `mapstructure:"maxdepth"`
}

// StreamConfig 控制多记录流文件的帧处理。
type StreamConfig struct {
	// Format 为帧负载的序列化格式：marshal、json、cbor、yaml、proto。
	Format          string `mapstructure:"format"`
	Compression     string `mapstructure:"compression"`
	MinCompressSize int    `mapstructure:"mincompresssize"`
	Encryption      bool   `mapstructure:"encryption"`
	// EncKey、MacKey 为十六进制编码的密钥，EncKey 必须为 32 字节。
	EncKey       string `mapstructure:"enckey"`
	MacKey       string `mapstructure:"mackey"`
	MaxFrameSize uint32 `mapstructure:"maxframesize"`
}

// VerifyConfig 控制批量校验的并发度，0 表示使用 CPU 核心数。
type VerifyConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// setDefaults 为所有配置项登记默认值，同时使对应的 PYMARSHAL_* 环境变量生效。
func setDefaults(v *zviper.Config) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", zlog.FormatConsole)
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.disable-timestamp", false)
	v.SetDefault("log.file.rootpath", "")
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max-size", 0)
	v.SetDefault("log.file.max-days", 0)
	v.SetDefault("log.file.max-backups", 0)

	v.SetDefault("marshal.version", marshal.Version)
	v.SetDefault("marshal.maxdepth", marshal.MaxDepth)

	v.SetDefault("stream.format", "marshal")
	v.SetDefault("stream.compression", "none")
	v.SetDefault("stream.mincompresssize", 0)
	v.SetDefault("stream.encryption", false)
	v.SetDefault("stream.enckey", "")
	v.SetDefault("stream.mackey", "")
	v.SetDefault("stream.maxframesize", framer.DefaultMaxFrameSize)

	v.SetDefault("verify.concurrency", 0)
}
