package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/pymarshal/pkg/marshal"
	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

type ToolSuite struct {
	suite.Suite
	dir string
}

func (s *ToolSuite) SetupTest() {
	s.dir = s.T().TempDir()
	chdir(s.T(), s.dir)
	s.T().Setenv("PYMARSHAL_CONFIG_FILE_PATH", "")
}

func (s *ToolSuite) run(stdin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func (s *ToolSuite) write(name string, data []byte) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, data, 0o600))
	return path
}

func (s *ToolSuite) TestDumpsLoads() {
	in := s.write("in.json", []byte(`{"b": [1, 2.5, "x", null], "a": true}`))
	out := filepath.Join(s.dir, "out.marshal")
	_, err := s.run("", "dumps", "--in", in, "--out", out)
	s.Require().NoError(err)

	want, err := marshal.Dumps(marshal.ValueOf(map[string]any{
		"a": true,
		"b": []any{int64(1), 2.5, "x", nil},
	}), marshal.Version)
	s.Require().NoError(err)
	got, err := os.ReadFile(out)
	s.Require().NoError(err)
	s.Equal(want, got)

	stdout, err := s.run("", "loads", "--in", out)
	s.Require().NoError(err)
	s.Equal(`{"a":true,"b":[1,2.5,"x",null]}`+"\n", stdout)

	stdout, err = s.run("", "loads", "--in", out, "--format", "yaml")
	s.Require().NoError(err)
	s.Contains(stdout, "a: true")
}

func (s *ToolSuite) TestDumpsStdinYAMLVersion() {
	stdout, err := s.run("k: 1.5\n", "dumps", "--in", "-", "--input-format", "yaml", "--version", "1")
	s.Require().NoError(err)
	v, err := marshal.Loads([]byte(stdout))
	s.Require().NoError(err)
	d, ok := v.(*marshal.Dict)
	s.Require().True(ok)
	f, _ := d.Get(marshal.NewStr("k"))
	s.Equal(marshal.Float(1.5), f)
	s.Contains(stdout, "f\x031.5")
}

func (s *ToolSuite) TestFramed() {
	in := s.write("in.json", []byte(`[1, "two", [3]]`))
	out := filepath.Join(s.dir, "out.frames")
	_, err := s.run("", "dumps", "--in", in, "--out", out, "--framed")
	s.Require().NoError(err)

	stdout, err := s.run("", "loads", "--in", out, "--framed")
	s.Require().NoError(err)
	s.Equal(`[1,"two",[3]]`+"\n", stdout)

	stdout, err = s.run("", "inspect", "--in", out, "--framed")
	s.Require().NoError(err)
	s.Equal(3, strings.Count(stdout, "# frame"))

	stdout, err = s.run("", "verify", "--framed", out)
	s.Require().NoError(err)
	s.Contains(stdout, "records=3")
}

func (s *ToolSuite) TestInspect() {
	path := s.write("list.marshal", []byte{0xdb, 1, 0, 0, 0, 'r', 0, 0, 0, 0, 'x'})
	stdout, err := s.run("", "inspect", "--in", path)
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	s.Require().Len(lines, 3)
	s.Contains(lines[0], "&list")
	s.Contains(lines[1], "ref ")
	s.Equal("# 1 trailing bytes ignored", lines[2])

	_, err = s.run("", "inspect", "--in", s.write("bad.marshal", []byte{'Q'}))
	s.Equal(merr.KindValue, merr.KindOf(err))
}

func (s *ToolSuite) TestVerify() {
	good := s.write("good.marshal", []byte{'N'})
	short := s.write("short.marshal", []byte{'i', 1})
	bad := s.write("bad.marshal", []byte{'Q'})

	stdout, err := s.run("", "verify", "--concurrency", "2", good, short, bad, good)
	s.Error(err)
	s.Contains(err.Error(), "2 of 3 files failed")
	s.Contains(stdout, "ok   "+good)
	s.Contains(stdout, "FAIL "+short+" EOFError")
	s.Contains(stdout, "FAIL "+bad+" ValueError")

	stdout, err = s.run("", "verify", filepath.Join(s.dir, "missing"))
	s.Error(err)
	s.Contains(stdout, "Error")
}

func (s *ToolSuite) TestUsage() {
	var ue usageError
	_, err := s.run("")
	s.True(errors.As(err, &ue))
	_, err = s.run("", "frobnicate")
	s.True(errors.As(err, &ue))
	_, err = s.run("", "dumps")
	s.True(errors.As(err, &ue))
	_, err = s.run("", "verify")
	s.True(errors.As(err, &ue))
	_, err = s.run("", "loads", "--bogus")
	s.True(errors.As(err, &ue))
	_, err = s.run("1", "dumps", "--in", "-", "--version", "9")
	s.True(errors.As(err, &ue))

	_, err = s.run("", "--help")
	s.NoError(err)
	_, err = s.run("", "loads", "-h")
	s.NoError(err)

	_, err = s.run("", "--config", filepath.Join(s.dir, "none.yaml"), "loads")
	s.Error(err)
	s.False(errors.As(err, &ue))
}

func TestTool(t *testing.T) {
	suite.Run(t, new(ToolSuite))
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
