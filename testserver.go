package slop

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"
)

// TestServer wraps a running gateway with convenient handles for tests.
type TestServer struct {
	Server  *Server
	BaseURL string
	Addr    net.Addr
	Config  Config

	stop func(context.Context) error
}

type testingWriter struct {
	t  testing.TB
	mu sync.Mutex
	// closed guards against writes after the associated test has finished.
	closed bool
}

func (w *testingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		w.t.Helper()
		func(entry string) {
			defer func() {
				if r := recover(); r != nil {
					if strings.Contains(fmt.Sprint(r), "Log in goroutine after") {
						w.closed = true
						return
					}
					panic(r)
				}
			}()
			w.t.Log(entry)
		}(string(line))
		if w.closed {
			break
		}
	}
	return len(p), nil
}

func (w *testingWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// NewTestServer starts a gateway on an ephemeral port, logging through t.
// The server is shut down when the test finishes.
func NewTestServer(t testing.TB, cfg Config, opts ...Option) *TestServer {
	t.Helper()
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:0"
	}
	if cfg.SweepInterval == 0 && !cfg.SweepIntervalSet {
		// Background ticks make timing-sensitive tests flaky; sweeping stays
		// reachable through Store.Sweep.
		cfg.SweepIntervalSet = true
	}
	writer := &testingWriter{t: t}
	var probe options
	for _, opt := range opts {
		opt(&probe)
	}
	if probe.Logger == nil {
		opts = append(opts, WithLogger(pslog.NewStructured(context.Background(), writer)))
	}

	srv, err := NewServer(cfg, opts...)
	if err != nil {
		t.Fatalf("new test server: %v", err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	readyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.WaitUntilReady(readyCtx); err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		select {
		case serveErr := <-errCh:
			t.Fatalf("test server never became ready: %v (serve: %v)", err, serveErr)
		default:
			t.Fatalf("test server never became ready: %v", err)
		}
	}
	var stopOnce sync.Once
	var stopErr error
	stop := func(shutdownCtx context.Context) error {
		stopOnce.Do(func() {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				stopErr = err
				return
			}
			if err := <-errCh; err != nil {
				stopErr = err
			}
		})
		return stopErr
	}
	addr := srv.ListenerAddr()
	if addr == nil {
		t.Fatal("test server has no listener address")
	}
	ts := &TestServer{
		Server:  srv,
		BaseURL: "http://" + addr.String(),
		Addr:    addr,
		Config:  cfg,
		stop:    stop,
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ts.stop(shutdownCtx); err != nil {
			t.Errorf("stop test server: %v", err)
		}
		writer.Close()
	})
	return ts
}

// Stop shuts the test server down before the enclosing test ends.
func (ts *TestServer) Stop(ctx context.Context) error {
	return ts.stop(ctx)
}
