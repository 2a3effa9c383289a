package application

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pymarshal/internal/stream/serializer"
	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	app := New()
	require.NoError(t, app.Init(""))

	cfg := app.Config()
	assert.Equal(t, marshal.Version, cfg.Marshal.Version)
	assert.Equal(t, marshal.MaxDepth, cfg.Marshal.MaxDepth)
	assert.Equal(t, "marshal", cfg.Stream.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Same(t, app.Logger("marshal"), app.Logger("marshal"))
}

func TestInitFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
marshal:
  version: 2
stream:
  compression: lz4
  encryption: true
  enckey: `+strings.Repeat("0a", 32)+`
  mackey: "ff"
`)
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("PYMARSHAL_VERIFY_CONCURRENCY", "3")

	app := New()
	require.NoError(t, app.Init(""))
	cfg := app.Config()
	assert.Equal(t, 2, cfg.Marshal.Version)
	assert.Equal(t, "lz4", cfg.Stream.Compression)
	assert.Equal(t, 3, cfg.Verify.Concurrency)

	c, err := app.NewCodec()
	require.NoError(t, err)
	defer c.Close()

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, marshal.NewList(marshal.Float(1.5))))
	var got marshal.Value
	frame, err := c.Decode(&buf, &got)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), frame.Version)
	assert.True(t, frame.Flags.Encrypted())
	assert.True(t, marshal.Equal(marshal.NewList(marshal.Float(1.5)), got))

	app.Viper().Set("marshal.version", 4)
	require.NoError(t, app.Reload())
	s, err := app.NewSerializer("")
	require.NoError(t, err)
	assert.Equal(t, 4, s.(*serializer.MarshalSerializer).Version())
}

func TestInitErrors(t *testing.T) {
	err := New().Init(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	app := New()
	require.NoError(t, app.Init(writeConfig(t, "stream:\n  compression: brotli\n")))
	_, err = app.NewCodec()
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	require.NoError(t, app.Init(writeConfig(t, "stream:\n  encryption: true\n")))
	_, err = app.NewCodec()
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = app.NewSerializer("xml")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	err = New().Init(writeConfig(t, "marshal:\n  version: 7\n"))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
