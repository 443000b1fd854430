package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/template"
)

const (
	// DefaultFormat is the default persisted line shape. Render and parse
	// round-trip byte-for-byte for its placeholder set.
	DefaultFormat = "$timestamp $hostname [$level] $name/$topic: $message"

	// DefaultTimeLayout bounds the timestamp precision the stream store
	// persists and recovers.
	DefaultTimeLayout = time.RFC3339

	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Stream persists one rendered line per record to a file or writer. A write
// lock serializes appends so concurrent fire-and-forget writes cannot
// interleave partial lines.
type Stream struct {
	name       string
	mu         sync.Mutex
	w          io.Writer
	file       *os.File
	path       string
	tmpl       *template.Template
	parser     *template.Parser
	timeLayout string
}

// NewStream opens (or creates) an append-only line file at path.
func NewStream(name, path string) (*Stream, error) {
	return newStream(name, path, DefaultFormat, DefaultTimeLayout)
}

// NewStreamWriter wraps an arbitrary writer, e.g. stderr. Writer-backed
// streams cannot read back.
func NewStreamWriter(name string, w io.Writer) (*Stream, error) {
	tmpl, err := template.Compile(DefaultFormat)
	if err != nil {
		return nil, err
	}
	return &Stream{name: name, w: w, tmpl: tmpl, timeLayout: DefaultTimeLayout}, nil
}

// NewStreamFromOptions builds a stream store from declarative options:
// "path" (required), "format", "time_layout".
func NewStreamFromOptions(name string, opts Options) (Store, error) {
	path, ok := opts.String("path")
	if !ok || strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: stream %q needs a path", name)
	}
	format := DefaultFormat
	if f, ok := opts.String("format"); ok {
		format = f
	}
	layout := DefaultTimeLayout
	if l, ok := opts.String("time_layout"); ok {
		layout = l
	}
	return newStream(name, path, format, layout)
}

func newStream(name, path, format, layout string) (*Stream, error) {
	tmpl, err := template.Compile(format)
	if err != nil {
		return nil, err
	}
	parser, err := template.NewParser(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("store: stream %q mkdir: %w", name, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("store: stream %q open: %w", name, err)
	}
	return &Stream{
		name:       name,
		w:          f,
		file:       f,
		path:       path,
		tmpl:       tmpl,
		parser:     parser,
		timeLayout: layout,
	}, nil
}

func (s *Stream) Name() string { return s.name }

// Write renders the record through the line template and appends it.
func (s *Stream) Write(r *record.Record) error {
	if r.Suppressed() {
		return nil
	}
	line, err := s.tmpl.Render(bindingsFor(r, s.timeLayout))
	if err != nil {
		return fmt.Errorf("store: stream %q render: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("store: stream %q write: %w", s.name, err)
	}
	return nil
}

// Read re-parses the persisted lines through the template's inverse parser.
// Tag and value filters are not persisted in line form; those filter fields
// are dropped with a warning rather than failing the read.
func (s *Stream) Read(f record.Filter) ([]*record.Record, error) {
	if s.file == nil {
		return nil, fmt.Errorf("stream %q is writer-backed: %w", s.name, ErrReadUnsupported)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Tags) > 0 {
		log.Printf("store: stream %q dropping unsupported tag filter %v", s.name, f.Tags)
		f.Tags = nil
	}

	in, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: stream %q open for read: %w", s.name, err)
	}
	defer in.Close()

	var out []*record.Record
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields, ok := s.parser.Parse(scanner.Text())
		if !ok {
			continue
		}
		r := recordFrom(fields, s.timeLayout)
		if f.Match(r) {
			out = append(out, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: stream %q scan: %w", s.name, err)
	}
	return out, nil
}

// Close closes the underlying file, if any.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func bindingsFor(r *record.Record, layout string) template.Bindings {
	tags := make(map[string]any, len(r.Tags))
	for k, v := range r.Tags {
		tags[k] = v
	}
	return template.Bindings{
		"timestamp": r.Timestamp.Format(layout),
		"hostname":  r.Hostname,
		"level":     r.Level.String(),
		"name":      r.Logger,
		"topic":     r.Topic,
		"value":     r.Value,
		"message":   r.Message,
		"tags":      tags,
	}
}

func recordFrom(fields map[string]string, layout string) *record.Record {
	r := &record.Record{
		Hostname: fields["hostname"],
		Logger:   fields["name"],
		Topic:    fields["topic"],
		Message:  fields["message"],
	}
	if ts, err := time.Parse(layout, fields["timestamp"]); err == nil {
		r.Timestamp = ts
	}
	if lvl, err := level.Parse(fields["level"]); err == nil {
		r.Level = lvl
	}
	if v, ok := fields["value"]; ok {
		r.Value = v
	}
	return r
}
