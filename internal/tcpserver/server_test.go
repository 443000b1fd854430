package tcpserver

import (
	"net"
	"testing"
	"time"

	"github.com/tinytelemetry/cascade/internal/ingest"
	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	sink := store.NewMemory("sink")
	target, err := logger.New("ingest", level.On, []store.Store{sink}, nil)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dec, err := ingest.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	s := NewServer("127.0.0.1:0", target, dec)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, sink
}

func waitFor(t *testing.T, sink *store.Memory, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.Len() < n {
		t.Fatalf("sink has %d records, want %d", sink.Len(), n)
	}
}

func TestDefaultAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, nil)
	if got := s.Addr(); got != "127.0.0.1:4600" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:4600")
	}
}

func TestConfiguredLineSize(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:5000", nil, nil, Config{MaxLineSize: 2048})
	if got := s.maxLineSize; got != 2048 {
		t.Fatalf("max line size = %d, want %d", got, 2048)
	}
}

func TestIngestJSONLines(t *testing.T) {
	s, sink := newTestServer(t)

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	lines := `{"level":"warn","topic":"disk","message":"almost full"}` + "\n" +
		`{"level":"info","topic":"cpu","message":"steady"}` + "\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitFor(t, sink, 2)

	recs, err := sink.Read(record.Filter{Topic: "disk"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(recs) != 1 || recs[0].Message != "almost full" || recs[0].Level != level.Warn {
		t.Errorf("ingested %+v", recs)
	}
}

func TestIngestUnparseableLineKept(t *testing.T) {
	s, sink := newTestServer(t)

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not a structured line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitFor(t, sink, 1)

	recs, _ := sink.Read(record.Filter{})
	if recs[0].Message != "not a structured line" {
		t.Errorf("ingested %+v, want the raw text preserved", recs[0])
	}
}
