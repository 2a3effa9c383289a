// marshaltool 在 marshal 二进制格式与 JSON/YAML/CBOR/Protobuf 之间转换，
// 并提供记录级别的数据查看与批量校验。
//
// 用法：
//
//	marshaltool [--config path] <command> [flags]
//
// 命令：
//
//	dumps    将 JSON/YAML/CBOR/Proto 数据编码为 marshal 格式
//	loads    将 marshal 数据转换为 JSON/YAML/CBOR/Proto
//	inspect  按偏移列出 marshal 数据中的每条记录
//	verify   并发解码多个文件并按错误类别报告失败
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lk2023060901/pymarshal/application"
	"github.com/lk2023060901/pymarshal/pkg/log"
)

// usageError 表示命令行参数错误，退出码为 2。
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type command struct {
	name  string
	short string
	run   func(env *environment, args []string) error
}

var commands = []command{
	{"dumps", "encode JSON/YAML/CBOR/Proto input as marshal data", runDumps},
	{"loads", "decode marshal data into JSON/YAML/CBOR/Proto", runLoads},
	{"inspect", "list every record of marshal data", runInspect},
	{"verify", "decode files concurrently and report failures", runVerify},
}

// environment 为命令执行所需的上下文。
type environment struct {
	app    *application.Application
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(log.S().Debugf)); err != nil {
		log.S().Warnf("failed to set GOMAXPROCS: %v", err)
	}
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var configPath string
	flagSet := pflag.NewFlagSet("marshaltool", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "config file (default $"+application.ConfigPathEnv+" or "+application.DefaultConfigPath+")")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return usagef("%v", err)
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return usagef("missing command")
	}

	for _, cmd := range commands {
		if cmd.name != rest[0] {
			continue
		}
		app := application.New()
		if err := app.Init(configPath); err != nil {
			return err
		}
		return cmd.run(&environment{app: app, stdin: stdin, stdout: stdout, stderr: stderr}, rest[1:])
	}
	printUsage(stderr, flagSet)
	return usagef("unknown command %q", rest[0])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  marshaltool [--config path] <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

// parseFlags 解析子命令参数。请求帮助时返回 false。
func parseFlags(flagSet *pflag.FlagSet, env *environment, args []string) (bool, error) {
	flagSet.SetOutput(env.stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, usagef("%s: %v", flagSet.Name(), err)
	}
	return true, nil
}
