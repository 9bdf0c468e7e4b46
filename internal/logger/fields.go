package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// fieldFormatter renders a logrus.Fields set the same way logrus's own
// TextFormatter would, so the tagged suffix this package appends reads
// identically to any other logrus-based line a consumer might already be
// grepping for (§4.A line format, supplemented per SPEC_FULL's AMBIENT
// STACK: "a logrus.Fields-shaped attachment point").
var fieldFormatter = &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}

func formatFields(fields logrus.Fields) string {
	if len(fields) == 0 {
		return ""
	}
	entry := logrus.NewEntry(logrus.New())
	entry.Data = fields
	b, err := fieldFormatter.Format(entry)
	if err != nil {
		return ""
	}
	return " " + strings.TrimSuffix(string(b), "\n")
}

// LogFields behaves like Log but tags the line with structured key=value
// fields (always including pid/tid, plus whatever the caller supplies —
// typically a connection or task trace ID) without altering the ring
// buffer discipline itself; the fields are rendered through logrus's own
// formatter and appended to the bespoke line the ring logger already
// builds.
func (l *Logger) LogFields(lvl Level, fields logrus.Fields, format string, args ...interface{}) {
	if lvl != FatalLevel && lvl > l.cfg.Level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	} else {
		file = filepath.Base(file)
	}

	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["pid"] = l.pid
	fields["tid"] = gettid()

	now := time.Now()
	msg := fmt.Sprintf(format, args...)
	header := fmt.Sprintf("[%s][%s.%03d][%d]%s:%d:%s ", lvl.String(), l.clock.Format(now), now.Nanosecond()/1e6, gettid(), file, line, formatFields(fields))
	lineBuf := append([]byte(header), msg...)
	lineBuf = append(lineBuf, '\n')
	if len(lineBuf) > MaxLineLen {
		lineBuf = lineBuf[:MaxLineLen-1]
		lineBuf = append(lineBuf, '\n')
	}

	l.appendLine(lineBuf, now)
}
