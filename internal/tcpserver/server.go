// Package tcpserver accepts newline-delimited log lines over TCP and posts
// them into a logger tree.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/tinytelemetry/cascade/internal/ingest"
	"github.com/tinytelemetry/cascade/internal/logger"
)

// DefaultMaxLineSize is the maximum size (in bytes) of a single line.
const DefaultMaxLineSize = 1024 * 1024

// Config holds tunable parameters for the TCP server.
type Config struct {
	MaxLineSize int
}

// Server listens for newline-delimited lines, decodes each, and posts it to
// the target logger. Decoding is tolerant, so every non-empty line produces
// a post.
type Server struct {
	addr        string
	target      *logger.Logger
	decoder     *ingest.Decoder
	maxLineSize int

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a TCP ingestion server. Default addr is
// "127.0.0.1:4600".
func NewServer(addr string, target *logger.Logger, decoder *ingest.Decoder, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:4600"
	}
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 && conf[0].MaxLineSize > 0 {
		maxLineSize = conf[0].MaxLineSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		target:      target,
		decoder:     decoder,
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()

	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	buf := make([]byte, s.maxLineSize)
	scanner.Buffer(buf, s.maxLineSize)

	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		rec := s.decoder.Decode(scanner.Text())
		if rec == nil {
			continue
		}
		s.target.Post(rec.Level, rec.Topic, rec.Value, rec.Message, rec.Tags)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("tcpserver: dropped connection %s due to line exceeding max size (%d bytes)", conn.RemoteAddr(), s.maxLineSize)
			return
		}
		log.Printf("tcpserver: scanner error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Stop gracefully shuts down the TCP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the active listen address. Before Start, it returns the
// configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
