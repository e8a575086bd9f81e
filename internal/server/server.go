// Package server is the demo glue around the pool: a raw TCP accept loop
// that hands each connection to the pool as one task. Request handling is
// deliberately minimal - first request line only, exact-match routes,
// canned HTML responses.
package server

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jchen17/webpool/internal/config"
	"github.com/jchen17/webpool/internal/logger"
	"github.com/jchen17/webpool/pkg/pool"
	"github.com/jchen17/webpool/pkg/types"
)

//go:embed static/*
var staticFiles embed.FS

// Server accepts connections and dispatches them to the pool. One slow
// connection only ever occupies one worker; unrelated connections keep
// being served by the rest of the pool.
type Server struct {
	addr  string
	pool  *pool.FixedPool
	clock types.Clock
	log   *logger.Logger

	sleepDuration time.Duration

	listener net.Listener
}

// New creates a server backed by p.
func New(cfg *config.ServerConfig, p *pool.FixedPool, clock types.Clock, log *logger.Logger) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pool must not be nil")
	}
	if clock == nil {
		clock = types.NewRealClock()
	}
	if log == nil {
		log = logger.Default
	}

	sleep, err := cfg.ParseSleepDuration()
	if err != nil {
		return nil, err
	}

	return &Server{
		addr:          cfg.Addr,
		pool:          p,
		clock:         clock,
		log:           log,
		sleepDuration: sleep,
	}, nil
}

// Addr returns the bound listen address. Valid after ListenAndServe has
// bound the listener; useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Listen binds the listener without serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener
	return nil
}

// Serve runs the accept loop until ctx is cancelled. Each accepted
// connection becomes one pool task.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	s.log.Info("listening on %s", s.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		task := pool.NewBasicTask(func(taskCtx context.Context) error {
			return s.handleConnection(taskCtx, conn)
		})
		if err := s.pool.Submit(task); err != nil {
			s.log.Warn("dropping connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			if errors.Is(err, types.ErrPoolClosed) {
				return err
			}
		}
	}
}

// ListenAndServe binds the listener and runs the accept loop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// handleConnection reads the request line and writes a canned response.
// A failure here fails this one connection only; it never touches the
// pool or other connections.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	requestLine, err := reader.ReadString('\n')
	if err != nil {
		return types.NewTaskError("server", "read-request", err).
			WithContext("remote_addr", conn.RemoteAddr().String())
	}
	requestLine = trimLineEnding(requestLine)

	status, body := s.route(ctx, requestLine)

	response := fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
	if _, err := conn.Write([]byte(response)); err != nil {
		return types.NewTaskError("server", "write-response", err).
			WithContext("remote_addr", conn.RemoteAddr().String())
	}

	s.log.Debug("%s <- %q", conn.RemoteAddr(), requestLine)
	return nil
}

// route maps a request line to a status line and body by exact match.
func (s *Server) route(ctx context.Context, requestLine string) (string, string) {
	switch requestLine {
	case "GET / HTTP/1.1":
		return "HTTP/1.1 200 OK", s.page("hello.html")
	case "GET /sleep HTTP/1.1":
		// Simulated slow endpoint; occupies exactly one worker.
		select {
		case <-s.clock.After(s.sleepDuration):
		case <-ctx.Done():
		}
		return "HTTP/1.1 200 OK", s.page("hello.html")
	default:
		return "HTTP/1.1 404 NOT FOUND", s.page("404.html")
	}
}

// page reads an embedded page. The pages ship inside the binary, so a
// read failure means a broken build rather than a runtime condition.
func (s *Server) page(name string) string {
	data, err := staticFiles.ReadFile("static/" + name)
	if err != nil {
		s.log.Error("missing embedded page %s: %v", name, err)
		return ""
	}
	return string(data)
}

func trimLineEnding(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
