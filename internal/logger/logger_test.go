package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogWritesLineToFile(t *testing.T) {
	dir := t.TempDir()

	l, err := New(Config{Dir: dir, ProgName: "test", Level: InfoLevel, FlushTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Log(InfoLevel, "hello %s", "world")

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log file missing expected content, got %q", string(data))
	}
	if !strings.HasPrefix(string(data), "[INFO]") {
		t.Errorf("expected line to start with level tag, got %q", string(data))
	}
}

func TestLogFiltersBelowLevel(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, ProgName: "test", Level: ErrorLevel, FlushTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Log(DebugLevel, "should not appear")
	l.Log(ErrorLevel, "should appear")
	l.Close()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if strings.Contains(string(data), "should not appear") {
		t.Errorf("debug line leaked through error-level filter")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Errorf("expected error line to be persisted")
	}
}

func TestFatalAlwaysLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, ProgName: "test", Level: FatalLevel, FlushTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Log(TraceLevel, "dropped")
	l.Log(FatalLevel, "kept")
	l.Close()

	entries, _ := os.ReadDir(dir)
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if !strings.Contains(string(data), "kept") {
		t.Errorf("fatal line should always be logged")
	}
	if strings.Contains(string(data), "dropped") {
		t.Errorf("trace line should have been filtered")
	}
}

func TestRingGrowsThenDropsAtMemCap(t *testing.T) {
	dir := t.TempDir()
	// Tiny buffers and a memory cap that allows exactly one extra buffer
	// beyond the initial two, forcing the drop path quickly.
	l, err := New(Config{
		Dir:          dir,
		ProgName:     "test",
		Level:        InfoLevel,
		BufferSize:   64,
		MemCap:       3 * 64,
		FlushTimeout: time.Hour, // keep consumer from draining mid-test
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	// Fill curr, roll to a grown buffer, then exhaust the cap and drop.
	for i := 0; i < 20; i++ {
		l.Log(InfoLevel, "line-%02d-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", i)
	}

	if l.DropCount() == 0 {
		t.Errorf("expected at least one dropped line once the ring hit its memory cap")
	}
}

func TestAppendRespectsFreeBufferInvariant(t *testing.T) {
	l := &Logger{cfg: Config{BufferSize: 16, MemCap: 1 << 20}, clock: newUTCClock(), done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	a := newCellBuffer(16)
	b := newCellBuffer(16)
	a.next, a.prev = b, b
	b.next, b.prev = a, a
	l.curr, l.prst = a, a

	l.appendLine([]byte("12345"), time.Now())
	if l.curr.used != 5 {
		t.Fatalf("expected 5 bytes appended, got %d", l.curr.used)
	}
	if l.curr.status != statusFree {
		t.Errorf("buffer with room left should remain Free")
	}
}
