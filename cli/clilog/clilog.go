// Package clilog builds the process logger from command line options.
package clilog

import (
	"context"
	"io"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/xerrors"
	"gopkg.in/natefinch/lumberjack.v2"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"cdr.dev/slog/v3/sloggers/slogjson"
)

// Special destinations. Anything else is treated as a file path.
const (
	Stdout  = "/dev/stdout"
	Stderr  = "/dev/stderr"
	Discard = "/dev/null"
)

const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 1
)

// Config describes where log entries go.
type Config struct {
	// Human and JSON are destinations for the two encodings. Empty
	// disables that encoding.
	Human string
	JSON  string
	// Filter holds regular expressions matched against logger names and
	// messages. Debug entries matching none of them are dropped. A
	// non-empty filter implies Verbose.
	Filter  []string
	Verbose bool

	// Rotation settings for file destinations. Zero means the default.
	MaxSizeMB  int
	MaxBackups int
}

// Build returns a logger writing to every configured destination along
// with a func that closes any files it opened.
func (c Config) Build(stdout, stderr io.Writer) (slog.Logger, func(), error) {
	var (
		sinks      []slog.Sink
		files      []*rotatingFile
		configured bool
	)
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, dest := range []struct {
		loc  string
		sink func(io.Writer) slog.Sink
	}{
		{c.Human, sloghuman.Sink},
		{c.JSON, slogjson.Sink},
	} {
		switch dest.loc {
		case "":
			continue
		case Discard:
		case Stdout:
			sinks = append(sinks, dest.sink(stdout))
		case Stderr:
			sinks = append(sinks, dest.sink(stderr))
		default:
			f := c.openFile(dest.loc)
			files = append(files, f)
			sinks = append(sinks, dest.sink(f))
		}
		configured = true
	}
	if !configured {
		return slog.Logger{}, func() {}, xerrors.Errorf("no log destination configured, use %s to disable logging", Discard)
	}

	filter, err := newFilterSink(sinks, c.Filter)
	if err != nil {
		closeFiles()
		return slog.Logger{}, func() {}, xerrors.Errorf("compile filters: %w", err)
	}

	level := slog.LevelInfo
	if c.Verbose || len(filter.patterns) > 0 {
		level = slog.LevelDebug
	}
	return slog.Make(filter).Leveled(level), closeFiles, nil
}

func (c Config) openFile(path string) *rotatingFile {
	size, backups := c.MaxSizeMB, c.MaxBackups
	if size <= 0 {
		size = DefaultMaxSizeMB
	}
	if backups <= 0 {
		backups = DefaultMaxBackups
	}
	return &rotatingFile{w: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    size,
		MaxBackups: backups,
	}}
}

// filterSink fans entries out to the configured sinks, dropping debug
// entries that no filter pattern matches.
type filterSink struct {
	next     []slog.Sink
	patterns []*regexp.Regexp
}

var _ slog.Sink = (*filterSink)(nil)

func newFilterSink(next []slog.Sink, exprs []string) (*filterSink, error) {
	f := &filterSink{next: next}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, xerrors.Errorf("filter %q: %w", expr, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

func (f *filterSink) keep(ent slog.SinkEntry) bool {
	if ent.Level != slog.LevelDebug || len(f.patterns) == 0 {
		return true
	}
	name := strings.Join(ent.LoggerNames, ".")
	for _, re := range f.patterns {
		if re.MatchString(name) || re.MatchString(ent.Message) {
			return true
		}
	}
	return false
}

func (f *filterSink) LogEntry(ctx context.Context, ent slog.SinkEntry) {
	if !f.keep(ent) {
		return
	}
	for _, sink := range f.next {
		sink.LogEntry(ctx, ent)
	}
}

func (f *filterSink) Sync() {
	for _, sink := range f.next {
		sink.Sync()
	}
}

// rotatingFile refuses writes once closed. lumberjack would otherwise
// reopen the file on the next write.
type rotatingFile struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	return r.w.Write(p)
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.w.Close()
}
