package log

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func initTestLogger(t testing.TB, level string, errOut *bytes.Buffer) *bytes.Buffer {
	out := &bytes.Buffer{}
	logTestWriter = out
	if errOut == nil {
		Init(level, logTestWriterName, nil)
	} else {
		Init(level, logTestWriterName, errOut)
	}
	t.Cleanup(func() {
		logTestWriter = nil
		Init(LogLevelError, "stderr", nil)
	})
	return out
}

func TestLevels(t *testing.T) {
	c := qt.New(t)
	out := initTestLogger(t, "INFO", nil)
	c.Assert(Level(), qt.Equals, LogLevelInfo)

	Debugw("option decrypted", "option", 1)
	c.Assert(out.String(), qt.Equals, "")

	Infow("vote accepted", "survey", "0x01", "voter", "0x02")
	line := out.String()
	c.Assert(line, qt.Contains, "vote accepted")
	c.Assert(line, qt.Contains, "survey=0x01")
	c.Assert(line, qt.Contains, "voter=0x02")

	out.Reset()
	Errorw(fmt.Errorf("gateway unreachable"), "decrypt")
	c.Assert(out.String(), qt.Contains, "gateway unreachable")
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	errOut := &bytes.Buffer{}
	out := initTestLogger(t, LogLevelDebug, errOut)

	Infof("survey %d configured", 3)
	Debug("tally updated")
	c.Assert(out.String(), qt.Contains, "survey 3 configured")
	c.Assert(out.String(), qt.Contains, "tally updated")
	c.Assert(errOut.String(), qt.Equals, "")

	Warnf("stale request from %s", "0xabc")
	Error("acl write failed")
	c.Assert(errOut.String(), qt.Contains, "stale request from 0xabc")
	c.Assert(errOut.String(), qt.Contains, "acl write failed")
	c.Assert(strings.Count(errOut.String(), "\n"), qt.Equals, 2)
}

func TestInvalidLevel(t *testing.T) {
	c := qt.New(t)
	initTestLogger(t, LogLevelInfo, nil)
	c.Assert(func() { Init("verbose", logTestWriterName, nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}

func TestHasInvalidCharacter(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		in      string
		invalid bool
	}{
		{"survey finalized", false},
		{"multi\nline\twith tabs\r", false},
		{"\x1b[32mcolored\x1b[0m", false},
		{"handle 0x00ff", false},
		{"raw \x00 byte", true},
		{"bell \x07", true},
		{"broken \xff\xfe utf8", true},
		{"escaped \ufffd rune", true},
	} {
		c.Assert(hasInvalidCharacter(tc.in), qt.Equals, tc.invalid, qt.Commentf("%q", tc.in))
	}
}

func TestInvalidCharChecker(t *testing.T) {
	c := qt.New(t)
	checker := &invalidCharChecker{}
	n, err := checker.Write([]byte("ok"))
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	c.Assert(func() { _, _ = checker.Write([]byte{'a', 0x01}) }, qt.PanicMatches, "log line with invalid chars.*")
}

func BenchmarkLogger(b *testing.B) {
	initTestLogger(b, LogLevelInfo, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Infow("vote accepted", "survey", "0x01", "seq", i)
		Debugf("skipped %d", i)
	}
}
