package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lk2023060901/pymarshal/internal/stream/codec"
	"github.com/lk2023060901/pymarshal/pkg/log"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/conc"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
	"github.com/lk2023060901/pymarshal/pkg/util/typeutil"
)

// verifyResult 为单个文件的校验结果。
type verifyResult struct {
	path    string
	records int
	size    int
	err     error
}

func (r verifyResult) kind() string {
	if kind := merr.KindOf(r.err); kind != merr.KindUnknown {
		return string(kind)
	}
	return "Error"
}

func runVerify(env *environment, args []string) error {
	var (
		concurrency int
		framed      bool
	)
	flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flagSet.IntVar(&concurrency, "concurrency", env.app.Config().Verify.Concurrency, "number of files decoded in parallel, 0 for CPU count")
	flagSet.BoolVar(&framed, "framed", false, "files are streams of frames")
	if ok, err := parseFlags(flagSet, env, args); !ok {
		return err
	}
	paths := lo.Uniq(flagSet.Args())
	if len(paths) == 0 {
		return usagef("verify: no files given")
	}

	ctx, span := log.NewIntentContext("marshaltool", "verify")
	defer span.End()
	logger := log.Ctx(ctx)

	var c codec.Codec
	if framed {
		var err error
		if c, err = env.app.NewCodec(); err != nil {
			return err
		}
		defer c.Close()
	}

	pool := conc.NewPool[verifyResult](concurrency, conc.WithConcealPanic(true))
	defer pool.Release()

	failedKinds := typeutil.NewConcurrentSet[string]()
	futures := lo.Map(paths, func(path string, _ int) *conc.Future[verifyResult] {
		return pool.Submit(func() (verifyResult, error) {
			res := verifyFile(env, c, path)
			if res.err != nil {
				failedKinds.Insert(res.kind())
			}
			return res, nil
		})
	})

	failed := 0
	for _, f := range futures {
		res, err := f.Await()
		if err != nil {
			return err
		}
		if res.err != nil {
			failed++
			logger.Warn("verify failed", zap.String("path", res.path), zap.String("kind", res.kind()), zap.Error(res.err))
			fmt.Fprintf(env.stdout, "FAIL %s %s: %v\n", res.path, res.kind(), res.err)
			continue
		}
		fmt.Fprintf(env.stdout, "ok   %s records=%d size=%d\n", res.path, res.records, res.size)
	}

	if failed > 0 {
		kinds := failedKinds.Collect()
		sort.Strings(kinds)
		return merr.WrapErrServiceInternal(fmt.Sprintf("%d of %d files failed", failed, len(paths)), kinds...)
	}
	logger.Info("verify finished", zap.Int("files", len(paths)))
	return nil
}

func verifyFile(env *environment, c codec.Codec, path string) verifyResult {
	res := verifyResult{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.err = merr.WrapErrIoFailed(path, err)
		return res
	}
	res.size = len(data)

	if c == nil {
		_, err := marshal.Loads(data, env.app.MarshalOptions()...)
		res.err = err
		res.records = lo.Ternary(err == nil, 1, 0)
		return res
	}

	r := bytes.NewReader(data)
	for {
		var v marshal.Value
		if _, err := c.Decode(r, &v); err != nil {
			if !errors.Is(err, io.EOF) {
				res.err = err
			}
			return res
		}
		res.records++
	}
}
