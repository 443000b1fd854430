// Package ingest converts wire lines into records. Decoding is tolerant:
// a line that is neither a JSON envelope nor a parseable text line still
// becomes a record carrying the raw text, never a dropped event.
package ingest

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
	"github.com/tinytelemetry/cascade/internal/template"
)

// Decoder turns one line into one record. Plain-text lines are matched
// against a line template; JSON objects are decoded as envelopes.
type Decoder struct {
	parser *template.Parser
	layout string
}

// Config adjusts decoding.
type Config struct {
	// Format is the plain-text line template. Defaults to the stream
	// store's default format, so a stream file can be replayed.
	Format string
	// TimeLayout parses the $timestamp placeholder.
	TimeLayout string
}

// NewDecoder builds a decoder for the given line format.
func NewDecoder(conf ...Config) (*Decoder, error) {
	format := store.DefaultFormat
	layout := store.DefaultTimeLayout
	if len(conf) > 0 {
		if conf[0].Format != "" {
			format = conf[0].Format
		}
		if conf[0].TimeLayout != "" {
			layout = conf[0].TimeLayout
		}
	}
	parser, err := template.NewParser(format)
	if err != nil {
		return nil, err
	}
	return &Decoder{parser: parser, layout: layout}, nil
}

// envelope is the JSON wire shape. Timestamp accepts an RFC 3339 string or
// unix seconds.
type envelope struct {
	Timestamp any               `json:"timestamp"`
	Hostname  string            `json:"hostname"`
	Level     string            `json:"level"`
	Logger    string            `json:"logger"`
	Topic     string            `json:"topic"`
	Value     any               `json:"value"`
	Message   string            `json:"message"`
	Tags      map[string]string `json:"tags"`
}

// Decode converts one line into a record. It never fails: an
// unrecognizable line becomes a raw-text record at On.
func (d *Decoder) Decode(line string) *record.Record {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "{") {
		if rec := d.decodeJSON(line); rec != nil {
			return rec
		}
	}
	if fields, ok := d.parser.Parse(line); ok {
		return d.recordFrom(fields)
	}
	return &record.Record{
		Timestamp: time.Now(),
		Level:     level.On,
		Message:   line,
	}
}

func (d *Decoder) decodeJSON(line string) *record.Record {
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil
	}
	rec := &record.Record{
		Timestamp: decodeTime(env.Timestamp, d.layout),
		Hostname:  env.Hostname,
		Level:     tolerantLevel(env.Level),
		Logger:    env.Logger,
		Topic:     env.Topic,
		Value:     env.Value,
		Message:   env.Message,
		Tags:      env.Tags,
	}
	return rec
}

func (d *Decoder) recordFrom(fields map[string]string) *record.Record {
	rec := &record.Record{
		Timestamp: time.Now(),
		Hostname:  fields["hostname"],
		Level:     tolerantLevel(fields["level"]),
		Logger:    fields["name"],
		Topic:     fields["topic"],
		Message:   fields["message"],
	}
	if ts, ok := fields["timestamp"]; ok {
		if parsed, err := time.Parse(d.layout, ts); err == nil {
			rec.Timestamp = parsed
		}
	}
	return rec
}

func decodeTime(v any, layout string) time.Time {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(layout, t); err == nil {
			return parsed
		}
	case float64:
		return time.Unix(int64(t), 0)
	}
	return time.Now()
}

// tolerantLevel keeps an event with a bad level instead of dropping it.
func tolerantLevel(s string) level.Level {
	lvl, err := level.Parse(s)
	if err != nil {
		log.Printf("ingest: %v, keeping event at ON", err)
		return level.On
	}
	if lvl == level.Unset {
		return level.On
	}
	return lvl
}
