package server

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/HnustLzh2/http/internal/errors"
	"github.com/HnustLzh2/http/internal/request"
	"github.com/HnustLzh2/http/internal/response"
	"github.com/HnustLzh2/http/internal/router"
	"github.com/HnustLzh2/http/internal/storage"
	"github.com/HnustLzh2/http/internal/transport"
)

func startTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	srv := New(cfg, zerolog.New(zerolog.NewTestWriter(t)))
	return srv, serveInBackground(t, srv)
}

// serveInBackground 在回环地址上启动 srv，测试结束时关闭并等待所有连接处理完
func serveInBackground(t *testing.T, srv *Server) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(listener)
	}()

	t.Cleanup(func() {
		srv.Close()
		if err := <-done; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
	return listener.Addr().String()
}

// sendRaw 发送原始请求并读取服务端关闭连接前的全部响应
func sendRaw(addr, raw string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(raw)); err != nil {
		return "", err
	}
	conn.(*net.TCPConn).CloseWrite()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := io.ReadAll(conn)
	return string(data), err
}

func send(t *testing.T, addr, raw string) string {
	t.Helper()
	got, err := sendRaw(addr, raw)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return got
}

func TestServer_Root(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "GET / HTTP/1.1\r\nHost: localhost:4221\r\n\r\n")
	expected := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 0\r\n\r\n"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestServer_Echo(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "GET /echo/hello HTTP/1.1\r\n\r\n")
	expected := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestServer_UserAgent(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "GET /user-agent HTTP/1.1\r\nUser-Agent: test-client/1.0\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(got, "\r\n\r\ntest-client/1.0") {
		t.Errorf("Unexpected response %q", got)
	}

	got = send(t, addr, "GET /user-agent HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("Expected 400 without User-Agent, got %q", got)
	}
}

func TestServer_NotFound(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "GET /nonexistent HTTP/1.1\r\n\r\n")
	expected := "HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\nContent-Length: 0\r\n\r\n"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestServer_FilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	_, addr := startTestServer(t, Config{Directory: dir})

	got := send(t, addr, "POST /files/x HTTP/1.1\r\nContent-Length: 12\r\n\r\nhello, world")
	if !strings.HasPrefix(got, "HTTP/1.1 201 Created\r\n") {
		t.Fatalf("Expected 201, got %q", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "x"))
	if err != nil {
		t.Fatalf("File was not written: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("Expected file contents %q, got %q", "hello, world", data)
	}

	got = send(t, addr, "GET /files/x HTTP/1.1\r\n\r\n")
	expected := "HTTP/1.1 200 OK\r\nContent-Type: application/octet-stream\r\nContent-Length: 12\r\n\r\nhello, world"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	got = send(t, addr, "GET /files/missing.txt HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("Expected 404, got %q", got)
	}
}

func TestServer_FilesDisabledWithoutDirectory(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "GET /files/x HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("Expected 404, got %q", got)
	}
}

func TestServer_MalformedContentLength(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	got := send(t, addr, "POST /files/x HTTP/1.1\r\nContent-Length: ten\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("Expected 400, got %q", got)
	}

	// 监听器仍然可用
	got = send(t, addr, "GET / HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Expected 200 after malformed request, got %q", got)
	}
}

func TestServer_TruncatedBody(t *testing.T) {
	dir := t.TempDir()
	_, addr := startTestServer(t, Config{Directory: dir})

	got := send(t, addr, "POST /files/x HTTP/1.1\r\nContent-Length: 100\r\n\r\nshort")
	if got != "" {
		t.Errorf("Expected connection to close without a response, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "x")); !os.IsNotExist(err) {
		t.Errorf("Truncated request should not write a file, stat returned %v", err)
	}
}

func TestServer_PanicIsContained(t *testing.T) {
	srv := New(Config{}, zerolog.New(zerolog.NewTestWriter(t)))
	srv.mux.Handle(router.Echo, func(*request.Request, storage.Dir) (*response.Response, error) {
		panic("boom")
	})
	addr := serveInBackground(t, srv)

	if got := send(t, addr, "GET /echo/x HTTP/1.1\r\n\r\n"); got != "" {
		t.Errorf("Expected no response from panicking handler, got %q", got)
	}

	got := send(t, addr, "GET / HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Expected server to keep serving, got %q", got)
	}
}

func TestServer_ConcurrentConnections(t *testing.T) {
	_, addr := startTestServer(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("msg-%d", i)
			got, err := sendRaw(addr, "GET /echo/"+text+" HTTP/1.1\r\n\r\n")
			if err != nil {
				t.Errorf("Request %d failed: %v", i, err)
				return
			}
			if !strings.HasSuffix(got, "\r\n\r\n"+text) {
				t.Errorf("Expected body %q, got %q", text, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestServeStream_InMemory(t *testing.T) {
	srv := New(Config{}, zerolog.Nop())

	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader("GET /echo/abc HTTP/1.1\r\n\r\n"), new(bytes.Buffer)}

	srv.serveStream(rw, zerolog.Nop())

	out := rw.Writer.(*bytes.Buffer).String()
	if !strings.HasSuffix(out, "Content-Length: 3\r\n\r\nabc") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestNew_Defaults(t *testing.T) {
	srv := New(Config{}, zerolog.Nop())
	if srv.cfg.Addr != DefaultAddr {
		t.Errorf("Expected default addr %q, got %q", DefaultAddr, srv.cfg.Addr)
	}
	if srv.cfg.Backend != "net" {
		t.Errorf("Expected net backend, got %q", srv.cfg.Backend)
	}
}

// skipUnlessBackend 在当前内核或平台不支持该后端时跳过
func skipUnlessBackend(t *testing.T, backend transport.Backend) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}
	defer listener.Close()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	conn, err := listener.Accept()
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	stream, err := transport.Wrap(conn, backend)
	if httperrors.Is(err, httperrors.InitFailure) || httperrors.Is(err, httperrors.UnsupportedBackend) {
		conn.Close()
		t.Skipf("%s backend unavailable: %v", backend, err)
	}
	if err != nil {
		conn.Close()
		t.Fatalf("Wrap failed: %v", err)
	}
	stream.Close()
}

// sendFragments 分段发送请求，每段之间停顿，服务端的读取必须等待后续数据
func sendFragments(addr string, delay time.Duration, fragments ...string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	for _, fragment := range fragments {
		time.Sleep(delay)
		if _, err := conn.Write([]byte(fragment)); err != nil {
			return "", err
		}
	}
	conn.(*net.TCPConn).CloseWrite()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := io.ReadAll(conn)
	return string(data), err
}

func TestServer_Backends(t *testing.T) {
	backends := []transport.Backend{
		transport.BackendNet,
		transport.BackendIOURing,
		transport.BackendURing,
	}

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			skipUnlessBackend(t, backend)

			dir := t.TempDir()
			_, addr := startTestServer(t, Config{Directory: dir, Backend: backend})
			delay := 30 * time.Millisecond

			got, err := sendFragments(addr, delay, "GET /echo/hi HT", "TP/1.1\r\nHost: x\r\n", "\r\n")
			if err != nil {
				t.Fatalf("Echo request failed: %v", err)
			}
			expected := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nhi"
			if got != expected {
				t.Errorf("Expected %q, got %q", expected, got)
			}

			got, err = sendFragments(addr, delay, "POST /files/b.txt HTTP/1.1\r\nContent-Length: 11\r\n\r\n", "hello", " world")
			if err != nil {
				t.Fatalf("Upload failed: %v", err)
			}
			if !strings.HasPrefix(got, "HTTP/1.1 201 Created\r\n") {
				t.Fatalf("Expected 201, got %q", got)
			}

			got, err = sendFragments(addr, delay, "GET /files/b.txt HTTP/1.1\r\n", "\r\n")
			if err != nil {
				t.Fatalf("Download failed: %v", err)
			}
			expected = "HTTP/1.1 200 OK\r\nContent-Type: application/octet-stream\r\nContent-Length: 11\r\n\r\nhello world"
			if got != expected {
				t.Errorf("Expected %q, got %q", expected, got)
			}
		})
	}
}

func TestServer_CloseBeforeServe(t *testing.T) {
	srv := New(Config{}, zerolog.New(zerolog.NewTestWriter(t)))
	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(listener)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil from Serve, got %v", err)
		}
	case <-time.After(time.Second):
		listener.Close()
		t.Fatal("Serve kept running after Close")
	}

	if _, err := listener.Accept(); err == nil {
		t.Error("Expected listener to be closed")
	}
}
