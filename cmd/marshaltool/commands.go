package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/internal/stream/serializer"
	"github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

// readInput 读取 path 的全部内容，"-" 表示标准输入。
func (env *environment) readInput(path string) ([]byte, error) {
	if path == "" {
		return nil, usagef("--in is required")
	}
	if path == "-" {
		data, err := io.ReadAll(env.stdin)
		return data, merr.WrapErrIoFailed("stdin", err)
	}
	data, err := os.ReadFile(path)
	return data, merr.WrapErrIoFailed(path, err)
}

// writeOutput 写出 data，"-" 或空串表示标准输出。
func (env *environment) writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := env.stdout.Write(data)
		return merr.WrapErrIoFailed("stdout", err)
	}
	return merr.WrapErrIoFailed(path, os.WriteFile(path, data, 0o644))
}

// formatFromPath 按扩展名推断输入格式，无法推断时为 json。
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".cbor":
		return "cbor"
	case ".pb", ".proto":
		return "proto"
	}
	return "json"
}

func runDumps(env *environment, args []string) error {
	var (
		in, out, inputFormat string
		version              int
		framed               bool
	)
	cfg := env.app.Config()
	flagSet := pflag.NewFlagSet("dumps", pflag.ContinueOnError)
	flagSet.StringVar(&in, "in", "", "input file, - for stdin")
	flagSet.StringVar(&out, "out", "-", "output file, - for stdout")
	flagSet.StringVar(&inputFormat, "input-format", "", "json|yaml|cbor|proto (default: by extension)")
	flagSet.IntVar(&version, "version", cfg.Marshal.Version, "marshal format version")
	flagSet.BoolVar(&framed, "framed", false, "write each element of a top-level list as a stream frame")
	if ok, err := parseFlags(flagSet, env, args); !ok {
		return err
	}
	if version < 0 || version > marshal.Version {
		return usagef("--version must be in [0, %d], got %d", marshal.Version, version)
	}
	if inputFormat == "" {
		inputFormat = formatFromPath(in)
	}

	ctx, span := log.NewIntentContext("marshaltool", "dumps")
	defer span.End()

	data, err := env.readInput(in)
	if err != nil {
		return err
	}
	input, err := serializer.ByName(inputFormat, version)
	if err != nil {
		return err
	}
	var value marshal.Value
	if err := input.Unmarshal(data, &value); err != nil {
		return errors.Wrapf(err, "parse %s input", inputFormat)
	}

	var encoded []byte
	if framed {
		env.app.Viper().Set("marshal.version", version)
		if err := env.app.Reload(); err != nil {
			return err
		}
		encoded, err = encodeFrames(env, value)
	} else {
		encoded, err = marshal.Dumps(value, version, env.app.MarshalOptions()...)
	}
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info("dumps finished",
		zap.String("in", in),
		log.FieldVersion(version),
		log.FieldSize(len(encoded)),
		zap.Bool("framed", framed))
	return env.writeOutput(out, encoded)
}

func encodeFrames(env *environment, value marshal.Value) ([]byte, error) {
	c, err := env.app.NewCodec()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	records := []marshal.Value{value}
	if l, ok := value.(*marshal.List); ok {
		records = l.Items
	}
	var buf bytes.Buffer
	for _, record := range records {
		if err := c.Encode(&buf, record); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func runLoads(env *environment, args []string) error {
	var (
		in, out, format string
		framed          bool
	)
	flagSet := pflag.NewFlagSet("loads", pflag.ContinueOnError)
	flagSet.StringVar(&in, "in", "", "input file, - for stdin")
	flagSet.StringVar(&out, "out", "-", "output file, - for stdout")
	flagSet.StringVar(&format, "format", "json", "output format: json|yaml|cbor|proto|marshal")
	flagSet.BoolVar(&framed, "framed", false, "read a stream of frames and output them as a list")
	if ok, err := parseFlags(flagSet, env, args); !ok {
		return err
	}

	ctx, span := log.NewIntentContext("marshaltool", "loads")
	defer span.End()

	data, err := env.readInput(in)
	if err != nil {
		return err
	}
	var value marshal.Value
	if framed {
		value, err = decodeFrames(env, data)
	} else {
		value, err = marshal.Loads(data, env.app.MarshalOptions()...)
	}
	if err != nil {
		log.Ctx(ctx).Warn("loads failed", zap.String("in", in), zap.String("kind", string(merr.KindOf(err))), zap.Error(err))
		return err
	}

	output, err := env.app.NewSerializer(format)
	if err != nil {
		return err
	}
	encoded, err := output.Marshal(value)
	if err != nil {
		return err
	}
	if format == "json" {
		encoded = append(encoded, '\n')
	}
	return env.writeOutput(out, encoded)
}

func decodeFrames(env *environment, data []byte) (marshal.Value, error) {
	c, err := env.app.NewCodec()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	r := bytes.NewReader(data)
	records := marshal.NewList()
	for {
		var v marshal.Value
		if _, err := c.Decode(r, &v); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return nil, errors.Wrapf(err, "frame %d", len(records.Items))
		}
		records.Items = append(records.Items, v)
	}
}

func runInspect(env *environment, args []string) error {
	var (
		in     string
		framed bool
	)
	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&in, "in", "", "input file, - for stdin")
	flagSet.BoolVar(&framed, "framed", false, "inspect the payload of every stream frame")
	if ok, err := parseFlags(flagSet, env, args); !ok {
		return err
	}

	data, err := env.readInput(in)
	if err != nil {
		return err
	}
	if !framed {
		return inspectPayload(env, data)
	}

	c, err := env.app.NewCodec()
	if err != nil {
		return err
	}
	defer c.Close()
	r := bytes.NewReader(data)
	for i := 0; ; i++ {
		frame, payload, err := c.DecodeRaw(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fmt.Fprintf(env.stdout, "# frame %d version=%d compression=%d encrypted=%t size=%d\n",
			i, frame.Version, frame.Flags.Compression(), frame.Flags.Encrypted(), len(payload))
		if err := inspectPayload(env, payload); err != nil {
			return err
		}
	}
}

func inspectPayload(env *environment, data []byte) error {
	records, err := marshal.Inspect(data, env.app.MarshalOptions()...)
	for _, r := range records {
		fmt.Fprintln(env.stdout, r.String())
	}
	if err != nil {
		return err
	}
	if end := records[0].Offset + records[0].Size; end < len(data) {
		fmt.Fprintf(env.stdout, "# %d trailing bytes ignored\n", len(data)-end)
	}
	return nil
}
