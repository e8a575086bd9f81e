package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchen17/webpool/internal/config"
	"github.com/jchen17/webpool/internal/logger"
	"github.com/jchen17/webpool/pkg/pool"
)

func startTestServer(t *testing.T, poolSize int, sleepDuration string) (*Server, context.CancelFunc) {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.PoolSize = poolSize
	cfg.SleepDuration = sleepDuration

	p, err := pool.New(&pool.Config{
		PoolSize: poolSize,
		Logger:   logger.New(io.Discard, logger.LevelError),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))

	srv, err := New(cfg, p, nil, logger.New(io.Discard, logger.LevelError))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-serveDone
		_ = p.Close()
	})
	return srv, cancel
}

// sendRequest writes a single request line and reads the full response.
func sendRequest(t *testing.T, addr, requestLine string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Write([]byte(requestLine + "\r\n"))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func TestServer_Routes(t *testing.T) {
	srv, _ := startTestServer(t, 2, "10ms")

	tests := []struct {
		name        string
		requestLine string
		wantStatus  string
		wantBody    string
	}{
		{
			name:        "root serves hello page",
			requestLine: "GET / HTTP/1.1",
			wantStatus:  "HTTP/1.1 200 OK",
			wantBody:    "Hello!",
		},
		{
			name:        "sleep serves hello page after delay",
			requestLine: "GET /sleep HTTP/1.1",
			wantStatus:  "HTTP/1.1 200 OK",
			wantBody:    "Hello!",
		},
		{
			name:        "unknown path serves 404 page",
			requestLine: "GET /missing HTTP/1.1",
			wantStatus:  "HTTP/1.1 404 NOT FOUND",
			wantBody:    "Oops!",
		},
		{
			name:        "non-GET request line serves 404 page",
			requestLine: "POST / HTTP/1.1",
			wantStatus:  "HTTP/1.1 404 NOT FOUND",
			wantBody:    "Oops!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := sendRequest(t, srv.Addr(), tt.requestLine)
			assert.Contains(t, response, tt.wantStatus)
			assert.Contains(t, response, "Content-Length:")
			assert.Contains(t, response, tt.wantBody)
		})
	}
}

func TestServer_SlowRequestDoesNotBlockFastRequests(t *testing.T) {
	const sleep = 300 * time.Millisecond
	srv, _ := startTestServer(t, 4, "300ms")

	start := time.Now()

	var wg sync.WaitGroup
	var slowElapsed time.Duration
	fastElapsed := make([]time.Duration, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sendRequest(t, srv.Addr(), "GET /sleep HTTP/1.1")
		slowElapsed = time.Since(start)
	}()

	// Give the slow request a head start so it occupies a worker first.
	time.Sleep(20 * time.Millisecond)

	for i := range fastElapsed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sendRequest(t, srv.Addr(), "GET / HTTP/1.1")
			fastElapsed[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, slowElapsed, sleep)
	for i, elapsed := range fastElapsed {
		assert.Less(t, elapsed, sleep,
			"fast request %d waited behind the sleeping request", i)
	}
}

func TestServer_SingleWorkerSerializesConnections(t *testing.T) {
	const sleep = 200 * time.Millisecond
	srv, _ := startTestServer(t, 1, "200ms")

	start := time.Now()

	var wg sync.WaitGroup
	var fastElapsed time.Duration

	wg.Add(1)
	go func() {
		defer wg.Done()
		sendRequest(t, srv.Addr(), "GET /sleep HTTP/1.1")
	}()

	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sendRequest(t, srv.Addr(), "GET / HTTP/1.1")
		fastElapsed = time.Since(start)
	}()
	wg.Wait()

	// With a single worker, the second connection waits its turn.
	assert.GreaterOrEqual(t, fastElapsed, sleep)
}

func TestServer_AbortedConnectionDoesNotAffectOthers(t *testing.T) {
	srv, _ := startTestServer(t, 2, "10ms")

	// A client that connects and hangs up without sending anything fails
	// only its own connection.
	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// The server keeps serving.
	response := sendRequest(t, srv.Addr(), "GET / HTTP/1.1")
	assert.Contains(t, response, "HTTP/1.1 200 OK")
}

func TestServer_ServeRequiresListen(t *testing.T) {
	cfg := config.Default()
	p, err := pool.New(&pool.Config{PoolSize: 1})
	require.NoError(t, err)
	defer p.Close()

	srv, err := New(cfg, p, nil, logger.New(io.Discard, logger.LevelError))
	require.NoError(t, err)

	assert.Error(t, srv.Serve(context.Background()))
}

func TestNew_Validation(t *testing.T) {
	cfg := config.Default()

	_, err := New(cfg, nil, nil, nil)
	assert.Error(t, err)

	cfg.SleepDuration = "not-a-duration"
	p, err := pool.New(&pool.Config{PoolSize: 1})
	require.NoError(t, err)
	defer p.Close()

	_, err = New(cfg, p, nil, nil)
	assert.Error(t, err)
}
